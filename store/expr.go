package store

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// updateExpr accumulates SET and REMOVE clauses for one record, using
// placeholders for every path segment so field names never clash with
// reserved words.
type updateExpr struct {
	sets    []string
	removes []string
	names   map[string]string
	values  map[string]types.AttributeValue
	byName  map[string]string
}

func newUpdateExpr() *updateExpr {
	return &updateExpr{
		names:  map[string]string{},
		values: map[string]types.AttributeValue{},
		byName: map[string]string{},
	}
}

// name returns the placeholder for an attribute name, reusing earlier ones.
func (u *updateExpr) name(seg string) string {
	if ph, ok := u.byName[seg]; ok {
		return ph
	}
	ph := fmt.Sprintf("#n%d", len(u.byName))
	u.byName[seg] = ph
	u.names[ph] = seg
	return ph
}

// docPath renders a document path like "#n0.#n1".
func (u *updateExpr) docPath(fields []string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = u.name(f)
	}
	return strings.Join(parts, ".")
}

func (u *updateExpr) set(fields []string, v types.AttributeValue) {
	ph := fmt.Sprintf(":v%d", len(u.values))
	u.values[ph] = v
	u.sets = append(u.sets, fmt.Sprintf("%s = %s", u.docPath(fields), ph))
}

func (u *updateExpr) remove(fields []string) {
	u.removes = append(u.removes, u.docPath(fields))
}

func (u *updateExpr) String() string {
	var clauses []string
	if len(u.sets) > 0 {
		clauses = append(clauses, "SET "+strings.Join(u.sets, ", "))
	}
	if len(u.removes) > 0 {
		clauses = append(clauses, "REMOVE "+strings.Join(u.removes, ", "))
	}
	return strings.Join(clauses, " ")
}

// exprNames returns the segment placeholders merged with those the
// condition expression uses. DynamoDB rejects unused names.
func (u *updateExpr) exprNames(condNames map[string]string) map[string]string {
	return mergeExprNames(u.names, condNames)
}

// exprValues returns nil when empty; DynamoDB rejects an empty value map.
func (u *updateExpr) exprValues() map[string]types.AttributeValue {
	if len(u.values) == 0 {
		return nil
	}
	return u.values
}
