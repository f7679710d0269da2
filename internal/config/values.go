package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// entityList reads a list of entity type names given as a YAML list or a
// comma separated env/flag value. Blanks and repeats are dropped.
func entityList(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}
	var raw []string
	switch typed := v.Get(key).(type) {
	case string:
		raw = strings.Split(typed, ",")
	default:
		raw = cast.ToStringSlice(typed)
	}

	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, name := range raw {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// signatureMap reads extra topic0 -> event name entries. Topics are
// lowercased so lookups match decoded signatures.
func signatureMap(v *viper.Viper, key string) map[string]string {
	out := make(map[string]string)
	if !v.IsSet(key) {
		return out
	}
	var entries map[string]string
	if s, ok := v.Get(key).(string); ok {
		entries = parseSignaturePairs(s)
	} else {
		entries = cast.ToStringMapString(v.Get(key))
	}
	for topic, name := range entries {
		topic = strings.ToLower(strings.TrimSpace(topic))
		name = strings.TrimSpace(name)
		if topic == "" || name == "" {
			continue
		}
		out[topic] = name
	}
	return out
}

// parseSignaturePairs reads "topic=Name,topic=Name" as set through env or flags.
func parseSignaturePairs(input string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(input, ",") {
		topic, name, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		topic, name = strings.TrimSpace(topic), strings.TrimSpace(name)
		if topic == "" || name == "" {
			continue
		}
		out[topic] = name
	}
	return out
}

func validateSignatures(sigs map[string]string) error {
	for topic := range sigs {
		if !strings.HasPrefix(topic, "0x") || len(topic) != 66 {
			return fmt.Errorf("signature key %q is not a 32-byte hex topic", topic)
		}
	}
	return nil
}
