package probe

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// TrustPolicyEqual compares two IAM trust policy documents structurally.
// Cloud APIs may reorder statements, reorder object keys, or reformat
// whitespace, so a textual comparison is useless: both documents are parsed,
// and statements are compared as an unordered multiset of canonicalized
// values.
func TrustPolicyEqual(a, b string) (bool, error) {
	docA, err := decodePolicy(a)
	if err != nil {
		return false, fmt.Errorf("parsing first policy document: %w", err)
	}
	docB, err := decodePolicy(b)
	if err != nil {
		return false, fmt.Errorf("parsing second policy document: %w", err)
	}

	stmtsA, restA := splitStatements(docA)
	stmtsB, restB := splitStatements(docB)

	if !reflect.DeepEqual(restA, restB) {
		return false, nil
	}
	if len(stmtsA) != len(stmtsB) {
		return false, nil
	}

	canonA, err := canonicalize(stmtsA)
	if err != nil {
		return false, err
	}
	canonB, err := canonicalize(stmtsB)
	if err != nil {
		return false, err
	}
	return reflect.DeepEqual(canonA, canonB), nil
}

func decodePolicy(doc string) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(doc), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// splitStatements separates the Statement list from the rest of the policy
// document. A single-object Statement is normalized to a one-element list.
func splitStatements(doc map[string]interface{}) ([]interface{}, map[string]interface{}) {
	rest := make(map[string]interface{}, len(doc))
	var stmts []interface{}
	for k, v := range doc {
		if k == "Statement" {
			switch s := v.(type) {
			case []interface{}:
				stmts = s
			default:
				stmts = []interface{}{s}
			}
			continue
		}
		rest[k] = v
	}
	return stmts, rest
}

// canonicalize renders each statement as deterministic JSON (Go sorts map
// keys when marshaling) and sorts the renderings, making the comparison
// order-insensitive.
func canonicalize(stmts []interface{}) ([]string, error) {
	out := make([]string, 0, len(stmts))
	for _, s := range stmts {
		b, err := json.Marshal(s)
		if err != nil {
			return nil, err
		}
		out = append(out, string(b))
	}
	sort.Strings(out)
	return out, nil
}

// ValuesEqual compares two value-override maps after a JSON round-trip, so
// int/float and typed-map representation differences between the declared
// and the deployed form do not produce false drift.
func ValuesEqual(declared, deployed map[string]interface{}) bool {
	if len(declared) == 0 && len(deployed) == 0 {
		return true
	}
	return reflect.DeepEqual(jsonNormalize(declared), jsonNormalize(deployed))
}

func jsonNormalize(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return m
	}
	var out map[string]interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return m
	}
	return out
}
