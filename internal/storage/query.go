package storage

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dshills/caresearch/pkg/types"
)

// Accepted sort keys per kind, after normalizeSortKey, mapped to SQL columns.
var (
	doctorSortColumns = map[string]string{
		"id":             "id",
		"userid":         "user_id",
		"firstname":      "first_name",
		"lastname":       "last_name",
		"specialization": "specialization",
		"contactnumber":  "contact_number",
		"phone":          "contact_number",
		"email":          "email",
		"schedule":       "schedule",
	}

	patientSortColumns = map[string]string{
		"id":            "id",
		"userid":        "user_id",
		"firstname":     "first_name",
		"lastname":      "last_name",
		"dateofbirth":   "date_of_birth",
		"dob":           "date_of_birth",
		"gender":        "gender",
		"contactnumber": "contact_number",
		"phone":         "contact_number",
	}

	appointmentSortColumns = map[string]string{
		"id":              "a.id",
		"patientid":       "a.patient_id",
		"doctorid":        "a.doctor_id",
		"appointmentdate": "a.appointment_date",
		"date":            "a.appointment_date",
		"status":          "a.status",
		"reason":          "a.reason",
		"createdat":       "a.created_at",
		"modifiedat":      "a.modified_at",
	}
)

func normalizeSortKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", "", "-", "").Replace(s)
}

// selectBuilder accumulates WHERE predicates and their arguments.
type selectBuilder struct {
	where []string
	args  []any
}

func newSelect(base ...string) *selectBuilder {
	return &selectBuilder{where: append([]string(nil), base...)}
}

func (b *selectBuilder) eq(col string, v any) {
	b.where = append(b.where, col+" = ?")
	b.args = append(b.args, v)
}

func inList[T any](b *selectBuilder, col string, vals []T) {
	if len(vals) == 0 {
		return
	}
	placeholders := make([]string, len(vals))
	for i, v := range vals {
		placeholders[i] = "?"
		b.args = append(b.args, v)
	}
	b.where = append(b.where, col+" IN ("+strings.Join(placeholders, ",")+")")
}

func (b *selectBuilder) whereClause() string {
	if len(b.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.where, " AND ")
}

// orderBy maps sort keys through columns, applies one direction to all of
// them and appends idColumn as the final tie-break. Unknown keys are rejected.
func orderBy(columns map[string]string, keys []string, order types.SortOrder, idColumn string) (string, error) {
	dir := "ASC"
	if order.Desc() {
		dir = "DESC"
	}
	parts := make([]string, 0, len(keys)+1)
	seen := make(map[string]bool, len(keys)+1)
	for _, k := range keys {
		if strings.TrimSpace(k) == "" {
			continue
		}
		col, ok := columns[normalizeSortKey(k)]
		if !ok {
			return "", fmt.Errorf("%w: unknown sort field %q", types.ErrInvalidArgument, k)
		}
		if seen[col] {
			continue
		}
		seen[col] = true
		parts = append(parts, col+" "+dir)
	}
	if !seen[idColumn] {
		parts = append(parts, idColumn+" "+dir)
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL. The queries built in
// this package never contain a literal question mark.
func rebind(d Dialect, query string) string {
	if d != DialectPostgres {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
