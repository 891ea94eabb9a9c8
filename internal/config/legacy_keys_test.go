package config

import (
	"reflect"
	"strings"
	"testing"
)

func TestLegacyKeyNormalization_NoUnderscoreCollisions(t *testing.T) {
	root := reflect.TypeOf(Config{})
	structs := map[reflect.Type]struct{}{}
	collectConfigStructTypes(root, structs)

	for typ := range structs {
		seen := map[string]string{}
		for i := 0; i < typ.NumField(); i++ {
			field := typ.Field(i)
			if !field.IsExported() {
				continue
			}
			name := canonicalTagName(field)
			if name == "" || name == "-" {
				continue
			}
			legacy := strings.ReplaceAll(name, "_", "")
			if prev, ok := seen[legacy]; ok && prev != name {
				t.Fatalf("legacy key collision in %s: %q and %q both map to %q",
					typ.Name(), prev, name, legacy)
			}
			seen[legacy] = name
		}
	}
}

func collectConfigStructTypes(t reflect.Type, seen map[reflect.Type]struct{}) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return
	}
	if _, ok := seen[t]; ok {
		return
	}
	// Only include structs from this package
	if t.PkgPath() != reflect.TypeOf(Config{}).PkgPath() {
		return
	}

	seen[t] = struct{}{}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldType := field.Type
		if fieldType.Kind() == reflect.Pointer {
			fieldType = fieldType.Elem()
		}
		switch fieldType.Kind() {
		case reflect.Struct:
			collectConfigStructTypes(fieldType, seen)
		case reflect.Slice:
			elem := fieldType.Elem()
			if elem.Kind() == reflect.Pointer {
				elem = elem.Elem()
			}
			if elem.Kind() == reflect.Struct {
				collectConfigStructTypes(elem, seen)
			}
		}
	}
}

func TestNormalizeLegacyConfigMap(t *testing.T) {
	data := map[string]interface{}{
		"dumpdir": "/var/crash",
		"hooks":   "trap, sigsegv,",
		"artifact": map[string]interface{}{
			"maxfiles":   3,
			"reportmode": "append",
		},
		"fataloutput": map[string]interface{}{"enabled": true},
	}

	got := normalizeLegacyConfigMap(data)

	artifact, ok := got["artifact"].(map[string]interface{})
	if !ok {
		t.Fatalf("artifact section missing: %#v", got)
	}
	if artifact["dir"] != "/var/crash" {
		t.Errorf("artifact.dir = %v, want /var/crash", artifact["dir"])
	}
	if artifact["max_files"] != 3 {
		t.Errorf("artifact.max_files = %v, want 3", artifact["max_files"])
	}
	if artifact["report_mode"] != "append" {
		t.Errorf("artifact.report_mode = %v, want append", artifact["report_mode"])
	}
	if _, ok := got["fatal_output"]; !ok {
		t.Error("fataloutput was not renamed to fatal_output")
	}
	if _, ok := got["dumpdir"]; ok {
		t.Error("dumpdir should be removed")
	}

	hooks, ok := got["hooks"].([]interface{})
	if !ok || len(hooks) != 2 || hooks[0] != "trap" || hooks[1] != "sigsegv" {
		t.Errorf("hooks = %#v, want [trap sigsegv]", got["hooks"])
	}
}

func TestNormalizeLegacyConfigMap_CanonicalWins(t *testing.T) {
	data := map[string]interface{}{
		"app_name": "legacy",
		"artifact": map[string]interface{}{"app_name": "canonical"},
	}

	got := normalizeLegacyConfigMap(data)

	artifact := got["artifact"].(map[string]interface{})
	if artifact["app_name"] != "canonical" {
		t.Errorf("artifact.app_name = %v, want canonical", artifact["app_name"])
	}
}

func TestNormalizeLegacyConfigMap_Nil(t *testing.T) {
	if got := normalizeLegacyConfigMap(nil); got != nil {
		t.Errorf("normalizeLegacyConfigMap(nil) = %#v, want nil", got)
	}
}
