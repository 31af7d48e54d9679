package engine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Render substitutes ${Name} placeholders with bindings. Placeholders with no
// binding are left untouched, which keeps IoT policy variables such as
// ${iot:Connection.Thing.ThingName} intact. Render has no side effects.
func Render(template string, bindings map[string]string) string {
	return placeholder.ReplaceAllStringFunc(template, func(m string) string {
		name := m[2 : len(m)-1]
		if v, ok := bindings[name]; ok {
			return v
		}
		return m
	})
}

// RenderDocument renders a JSON document template and checks the result.
// It fails if the output is not valid JSON or if any of the required
// placeholders were left unbound.
func RenderDocument(template string, bindings map[string]string, required ...string) (string, error) {
	var missing []string
	for _, name := range required {
		if strings.TrimSpace(bindings[name]) == "" && strings.Contains(template, "${"+name+"}") {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("unbound template placeholders: %s", strings.Join(missing, ", "))
	}

	doc := Render(template, bindings)
	if !json.Valid([]byte(doc)) {
		return "", fmt.Errorf("rendered document is not valid JSON")
	}
	return doc, nil
}

// EquivalentJSON reports whether two JSON documents decode to the same value,
// ignoring whitespace and key order.
func EquivalentJSON(a, b string) bool {
	var va, vb any
	if err := json.Unmarshal([]byte(a), &va); err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(b), &vb); err != nil {
		return false
	}
	ca, _ := json.Marshal(va)
	cb, _ := json.Marshal(vb)
	return string(ca) == string(cb)
}
