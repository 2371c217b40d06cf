package config

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"
)

var entryType = reflect.TypeOf(EntryConfig{})

// entryDecodeHook lets plan entries be written as a bare command string or
// as a [command, count, timeout] list next to the full map form.
func entryDecodeHook() mapstructure.DecodeHookFuncType {
	return func(from, to reflect.Type, data interface{}) (interface{}, error) {
		if to != entryType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return map[string]interface{}{"command": v}, nil
		case []interface{}:
			entry, err := entryFromList(v)
			if err != nil {
				return nil, err
			}
			return entry.asMap(), nil
		default:
			return data, nil
		}
	}
}

func entryFromList(items []interface{}) (EntryConfig, error) {
	if len(items) == 0 || len(items) > 3 {
		return EntryConfig{}, fmt.Errorf("plan entry needs 1 to 3 elements, got %d", len(items))
	}

	command, err := cast.ToStringE(items[0])
	if err != nil {
		return EntryConfig{}, fmt.Errorf("plan entry command: %w", err)
	}
	entry := EntryConfig{Command: command}

	if len(items) >= 2 {
		if entry.Count, err = cast.ToIntE(items[1]); err != nil {
			return EntryConfig{}, fmt.Errorf("plan entry %q count: %w", command, err)
		}
	}
	if len(items) == 3 {
		timeout, err := cast.ToIntE(items[2])
		if err != nil {
			return EntryConfig{}, fmt.Errorf("plan entry %q timeout: %w", command, err)
		}
		entry.Timeout = &timeout
	}

	return entry, nil
}

func (e EntryConfig) asMap() map[string]interface{} {
	m := map[string]interface{}{
		"command": e.Command,
		"count":   e.Count,
	}
	if e.Timeout != nil {
		m["timeout"] = *e.Timeout
	}
	return m
}
