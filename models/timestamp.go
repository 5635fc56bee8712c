package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// FlexTime is a creation timestamp that tolerates both wire representations the
// store may emit: an ISO-8601 string, or a numeric component array
// [year, month, day, hour, minute, second, nanos] interpreted as local time.
// It always marshals back to RFC3339, so the raw shape never leaks past the
// decoding boundary.
type FlexTime struct {
	time.Time
}

// NewFlexTime wraps t as a FlexTime.
func NewFlexTime(t time.Time) FlexTime {
	return FlexTime{Time: t}
}

// UnmarshalJSON decodes either wire format into a single canonical instant.
func (ft *FlexTime) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		ft.Time = time.Time{}
		return nil
	}

	if data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("failed to decode timestamp string: %w", err)
		}
		parsed, err := parseTimeString(raw)
		if err != nil {
			return err
		}
		ft.Time = parsed
		return nil
	}

	if data[0] == '[' {
		var parts []int
		if err := json.Unmarshal(data, &parts); err != nil {
			return fmt.Errorf("failed to decode timestamp array: %w", err)
		}
		parsed, err := timeFromComponents(parts)
		if err != nil {
			return err
		}
		ft.Time = parsed
		return nil
	}

	return fmt.Errorf("unsupported timestamp representation: %s", string(data))
}

// MarshalJSON always emits RFC3339Nano.
func (ft FlexTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(ft.Time.Format(time.RFC3339Nano))
}

func parseTimeString(raw string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", raw)
}

// timeFromComponents builds an instant from [Y,M,D,h,m,s,nanos]. Trailing
// components may be omitted; year, month and day are required.
func timeFromComponents(parts []int) (time.Time, error) {
	if len(parts) < 3 {
		return time.Time{}, fmt.Errorf("timestamp array needs at least [year,month,day], got %d elements", len(parts))
	}
	padded := make([]int, 7)
	copy(padded, parts)
	return time.Date(padded[0], time.Month(padded[1]), padded[2],
		padded[3], padded[4], padded[5], padded[6], time.Local), nil
}
