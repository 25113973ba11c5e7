package store

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"booking-core-backend/internal/model"
	"booking-core-backend/internal/parse"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := parse.ParseClock(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("weekdays", func(fl validator.FieldLevel) bool {
		_, err := parse.ParseWeekdays(fl.Field().String())
		return err == nil
	})
	v.RegisterStructValidation(resourceRules, model.Resource{})
	return v
}

// resourceRules checks what single fields cannot: slot granularity and per-host window overlap.
func resourceRules(sl validator.StructLevel) {
	r := sl.Current().Interface().(model.Resource)

	type span struct {
		host       string
		days       []time.Weekday
		start, end int
	}
	var seen []span

	for i, w := range r.Windows {
		days, errDays := parse.ParseWeekdays(w.Days)
		start, errStart := parse.ParseClock(w.StartTime)
		end, errEnd := parse.ParseClock(w.EndTime)
		if errDays != nil || errStart != nil || errEnd != nil {
			continue
		}
		field := fmt.Sprintf("Windows[%d].EndTime", i)
		if start >= end {
			sl.ReportError(w.EndTime, field, "EndTime", "after_start", "")
			continue
		}
		if r.SlotMinutes > 0 && (end-start)%r.SlotMinutes != 0 {
			sl.ReportError(w.EndTime, field, "EndTime", "slot_multiple", fmt.Sprint(r.SlotMinutes))
		}
		for _, o := range seen {
			if o.host != w.HostIdentifier || start >= o.end || o.start >= end {
				continue
			}
			if slices.ContainsFunc(days, func(d time.Weekday) bool { return slices.Contains(o.days, d) }) {
				overlap := fmt.Sprintf("%s %s-%s", o.host, parse.FormatClock(o.start), parse.FormatClock(o.end))
				sl.ReportError(w.StartTime, fmt.Sprintf("Windows[%d].StartTime", i), "StartTime", "host_overlap", overlap)
				break
			}
		}
		seen = append(seen, span{host: w.HostIdentifier, days: days, start: start, end: end})
	}
}

// validateResource flattens validator errors into a single ErrValidation.
func validateResource(r *model.Resource) error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
		if fe.Param() != "" {
			msg += " (" + fe.Param() + ")"
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}
