package configuration

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"

	"github.com/gpufand/gpufand/internal/curve"
	"github.com/mitchellh/mapstructure"
)

// curvePointsHookFunc returns a mapstructure decode hook that turns the YAML
// representations of a curve into an ordered []curve.Point:
//
//  1. A list of [temperature, speed] pairs, preserving the written order
//     (so misordered curves are rejected by validation instead of being
//     silently sorted).
//  2. A temperature-keyed map (e.g. "40: 100"), sorted by temperature.
func curvePointsHookFunc() mapstructure.DecodeHookFuncType {
	pointsType := reflect.TypeOf([]curve.Point{})

	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if t != pointsType {
			return data, nil
		}

		switch v := data.(type) {
		case []interface{}:
			if len(v) > 0 {
				switch v[0].(type) {
				case map[string]interface{}, map[interface{}]interface{}:
					// {temperature:, speed:} objects decode natively
					return data, nil
				}
			}
			return parsePointPairs(v)
		case map[string]interface{}:
			return parsePointMap(v)
		case map[interface{}]interface{}:
			converted := make(map[string]interface{}, len(v))
			for key, value := range v {
				converted[fmt.Sprintf("%v", key)] = value
			}
			return parsePointMap(converted)
		}

		return data, nil
	}
}

func parsePointPairs(data []interface{}) ([]curve.Point, error) {
	points := make([]curve.Point, 0, len(data))
	for _, entry := range data {
		pair, ok := entry.([]interface{})
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("curve point %v: expected a [temperature, speed] pair", entry)
		}
		temperature, err := anyToInt(pair[0])
		if err != nil {
			return nil, fmt.Errorf("curve point %v: %w", entry, err)
		}
		speed, err := anyToInt(pair[1])
		if err != nil {
			return nil, fmt.Errorf("curve point %v: %w", entry, err)
		}
		points = append(points, curve.Point{Temperature: temperature, Speed: speed})
	}
	return points, nil
}

func parsePointMap(data map[string]interface{}) ([]curve.Point, error) {
	points := make([]curve.Point, 0, len(data))
	for key, value := range data {
		temperature, err := anyToInt(key)
		if err != nil {
			return nil, fmt.Errorf("curve temperature %q: %w", key, err)
		}
		speed, err := anyToInt(value)
		if err != nil {
			return nil, fmt.Errorf("curve speed %v: %w", value, err)
		}
		points = append(points, curve.Point{Temperature: temperature, Speed: speed})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Temperature < points[j].Temperature
	})
	return points, nil
}

// anyToInt converts numeric and string values to int.
func anyToInt(v interface{}) (int, error) {
	switch val := v.(type) {
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case float64:
		return int(val), nil
	case string:
		n, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as int: %w", val, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to int", v)
	}
}
