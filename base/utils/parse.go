package utils

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// ParseInt parses value of string, int, integer float into int.
func ParseInt(value any) (int, error) {
	switch v := value.(type) {
	case string:
		i, err := strconv.ParseInt(v, 10, 64)
		return int(i), err
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v == math.Trunc(v) {
			return int(v), nil
		} else {
			return 0, fmt.Errorf("can't parse float %f as int", v)
		}
	default:
		return 0, fmt.Errorf("ParseInt: invalid value type %T", value)
	}
}

// ParseDuration parses duration from string like "30s" or from a number of seconds.
func ParseDuration(value any) (time.Duration, error) {
	switch v := value.(type) {
	case string:
		return time.ParseDuration(v)
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	case time.Duration:
		return v, nil
	default:
		return 0, fmt.Errorf("ParseDuration: invalid value type %T", value)
	}
}
