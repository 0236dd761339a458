package stage

import (
	"fmt"

	"treadle/internal/services"
)

// Declaration names one stage of a job's pipeline and its position in the
// dependency graph. Optional stages degrade the job instead of failing it;
// FallbackOutputs supplies the artifact refs downstream stages see when an
// optional stage is skipped over a failure.
type Declaration struct {
	ID              string
	DependsOn       []string
	Optional        bool
	FallbackOutputs map[string]string
}

// Plan validates the declarations and returns them ordered so every stage
// appears after all of its dependencies. Stages with no ordering constraint
// between them keep their declaration order.
func Plan(decls []Declaration) ([]Declaration, error) {
	if len(decls) == 0 {
		return nil, services.Wrap(services.ErrValidation, "stage", "plan",
			"Job declares no stages", nil)
	}
	index := make(map[string]int, len(decls))
	for i, d := range decls {
		if d.ID == "" {
			return nil, services.Wrap(services.ErrValidation, "stage", "plan",
				"Stage declaration missing an id", nil)
		}
		if _, dup := index[d.ID]; dup {
			return nil, services.Wrap(services.ErrValidation, "stage", "plan",
				fmt.Sprintf("Stage %q declared more than once", d.ID), nil)
		}
		index[d.ID] = i
	}
	for _, d := range decls {
		for _, dep := range d.DependsOn {
			if _, ok := index[dep]; !ok {
				return nil, services.Wrap(services.ErrValidation, "stage", "plan",
					fmt.Sprintf("Stage %q depends on undeclared stage %q", d.ID, dep), nil)
			}
			if dep == d.ID {
				return nil, services.Wrap(services.ErrValidation, "stage", "plan",
					fmt.Sprintf("Stage %q depends on itself", d.ID), nil)
			}
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(decls))
	ordered := make([]Declaration, 0, len(decls))

	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case done:
			return nil
		case visiting:
			return services.Wrap(services.ErrValidation, "stage", "plan",
				fmt.Sprintf("Dependency cycle through stage %q", decls[i].ID), nil)
		}
		state[i] = visiting
		for _, dep := range decls[i].DependsOn {
			if err := visit(index[dep]); err != nil {
				return err
			}
		}
		state[i] = done
		ordered = append(ordered, decls[i])
		return nil
	}
	for i := range decls {
		if err := visit(i); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}
