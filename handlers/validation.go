package handlers

import (
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kevinaaaquil/unilib/service"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// rule checks one field. It returns an empty string when the value is acceptable.
type rule struct {
	field string
	check func() string
}

// validate runs every rule and reports all failures at once.
func validate(rules ...rule) error {
	fields := map[string]string{}
	for _, r := range rules {
		if _, seen := fields[r.field]; seen {
			continue
		}
		if msg := r.check(); msg != "" {
			fields[r.field] = msg
		}
	}
	if len(fields) > 0 {
		return service.Validation("request validation failed", fields)
	}
	return nil
}

func required(field, value string) rule {
	return rule{field, func() string {
		if strings.TrimSpace(value) == "" {
			return "is required"
		}
		return ""
	}}
}

// objectID parses value into dst.
func objectID(field, value string, dst *primitive.ObjectID) rule {
	return rule{field, func() string {
		id, err := primitive.ObjectIDFromHex(strings.TrimSpace(value))
		if err != nil {
			return "must be a valid id"
		}
		*dst = id
		return ""
	}}
}

// futureTime accepts RFC 3339 timestamps or plain dates (end of that day, UTC).
func futureTime(field, value string, now time.Time, dst *time.Time) rule {
	return rule{field, func() string {
		value = strings.TrimSpace(value)
		t, err := time.Parse(time.RFC3339, value)
		if err != nil {
			d, derr := time.Parse(time.DateOnly, value)
			if derr != nil {
				return "must be an RFC 3339 timestamp or YYYY-MM-DD date"
			}
			t = d.Add(24*time.Hour - time.Second)
		}
		if !t.After(now) {
			return "must be in the future"
		}
		*dst = t.UTC()
		return ""
	}}
}

func intRange(field string, value, min, max int) rule {
	return rule{field, func() string {
		if value < min || value > max {
			return fmt.Sprintf("must be between %d and %d", min, max)
		}
		return ""
	}}
}

func oneOf[T ~string](field string, value T, allowed []T) rule {
	return rule{field, func() string {
		if !slices.Contains(allowed, value) {
			names := make([]string, len(allowed))
			for i, a := range allowed {
				names[i] = string(a)
			}
			return "must be one of " + strings.Join(names, ", ")
		}
		return ""
	}}
}

// optional skips r when value is empty.
func optional(value string, r rule) rule {
	return rule{r.field, func() string {
		if strings.TrimSpace(value) == "" {
			return ""
		}
		return r.check()
	}}
}

type page struct {
	Page  int
	Limit int
}

// pagination reads page and limit from the query string. Limit is capped at 100.
func pagination(r *http.Request, dst *page) []rule {
	q := r.URL.Query()
	dst.Page, dst.Limit = 1, 20
	parse := func(field string, into *int, min, max int) rule {
		return rule{field, func() string {
			raw := strings.TrimSpace(q.Get(field))
			if raw == "" {
				return ""
			}
			n, err := strconv.Atoi(raw)
			if err != nil || n < min || n > max {
				return fmt.Sprintf("must be an integer between %d and %d", min, max)
			}
			*into = n
			return ""
		}}
	}
	return []rule{
		parse("page", &dst.Page, 1, 1_000_000),
		parse("limit", &dst.Limit, 1, 100),
	}
}

func pathID(r *http.Request, name string, dst *primitive.ObjectID) error {
	return validate(objectID(name, urlParam(r, name), dst))
}
