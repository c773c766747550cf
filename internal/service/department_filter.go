// internal/service/department_filter.go
package service

import (
	"sort"
	"strings"
)

const AllDepartments = "all"

// DepartmentFilter is the set of lower-cased departments a batch targets.
type DepartmentFilter map[string]struct{}

// ParseDepartmentFilter splits a comma separated list. An empty list means "all".
func ParseDepartmentFilter(raw string) DepartmentFilter {
	f := DepartmentFilter{}
	for _, part := range strings.Split(raw, ",") {
		d := strings.ToLower(strings.TrimSpace(part))
		if d != "" {
			f[d] = struct{}{}
		}
	}
	if len(f) == 0 {
		f[AllDepartments] = struct{}{}
	}
	return f
}

func (f DepartmentFilter) Includes(department string) bool {
	if _, ok := f[AllDepartments]; ok {
		return true
	}
	_, ok := f[strings.ToLower(strings.TrimSpace(department))]
	return ok
}

func (f DepartmentFilter) Departments() []string {
	out := make([]string, 0, len(f))
	for d := range f {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func (f DepartmentFilter) String() string {
	return strings.Join(f.Departments(), ",")
}
