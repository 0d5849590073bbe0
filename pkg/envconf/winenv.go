package envconf

import (
	"strings"

	"github.com/arthur-debert/kitman/pkg/errors"
)

// ValueStore is the user environment as the Windows registry exposes it.
type ValueStore interface {
	// Get returns a value and whether it is expandable. A missing value is
	// returned as found == false with no error.
	Get(name string) (value string, expand, found bool, err error)
	SetString(name, value string) error
	SetExpandString(name, value string) error
	Delete(name string) error
}

// RegistryConfigurator stores env in the user's registry environment.
type RegistryConfigurator struct {
	store ValueStore
	// notify tells running programs the environment changed.
	notify func()
}

// NewRegistryConfigurator wraps a value store.
func NewRegistryConfigurator(store ValueStore, notify func()) *RegistryConfigurator {
	if notify == nil {
		notify = func() {}
	}
	return &RegistryConfigurator{store: store, notify: notify}
}

const (
	pathValue = "Path"
	// priorPrefix names the value that keeps what a variable held before
	// Apply replaced it.
	priorPrefix = "KITMAN_PRIOR_"
)

// Apply sets every variable and prepends missing paths. PATH is stored as
// an expandable string so %VAR% references keep working.
func (c *RegistryConfigurator) Apply(env Environment) error {
	if env.Empty() {
		return nil
	}
	for _, v := range env.Vars {
		value := v.Value
		if v.AppendExisting {
			current, _, found, err := c.store.Get(v.Name)
			if err != nil {
				return errors.Wrapf(err, errors.ErrFileAccess, "read %s", v.Name)
			}
			switch {
			case !found || current == "":
			case current == value || strings.HasPrefix(current, value+","):
				value = current
			default:
				value += "," + current
			}
		}
		if !v.AppendExisting {
			if err := c.savePrior(v.Name, value); err != nil {
				return err
			}
		}
		if err := c.store.SetString(v.Name, value); err != nil {
			return errors.Wrapf(err, errors.ErrFileWrite, "set %s", v.Name)
		}
	}
	if len(env.Paths) > 0 {
		current, _, _, err := c.store.Get(pathValue)
		if err != nil {
			return errors.Wrap(err, errors.ErrFileAccess, "read Path")
		}
		entries := splitWinPath(current)
		var fresh []string
		for _, p := range env.Paths {
			if !containsFold(entries, p) && !containsFold(fresh, p) {
				fresh = append(fresh, p)
			}
		}
		if len(fresh) > 0 {
			if err := c.store.SetExpandString(pathValue, strings.Join(append(fresh, entries...), ";")); err != nil {
				return errors.Wrap(err, errors.ErrFileWrite, "set Path")
			}
		}
	}
	c.notify()
	return nil
}

// Revert deletes the variables, or puts back what they held before Apply,
// and drops the paths.
func (c *RegistryConfigurator) Revert(env Environment) error {
	for _, v := range env.Vars {
		if v.AppendExisting {
			current, _, found, err := c.store.Get(v.Name)
			if err != nil {
				return errors.Wrapf(err, errors.ErrFileAccess, "read %s", v.Name)
			}
			// Hand back what the user had before.
			if rest := strings.TrimPrefix(current, v.Value+","); found && rest != current {
				if err := c.store.SetString(v.Name, rest); err != nil {
					return errors.Wrapf(err, errors.ErrFileWrite, "set %s", v.Name)
				}
				continue
			}
		}
		restored, err := c.restorePrior(v.Name)
		if err != nil {
			return err
		}
		if restored {
			continue
		}
		if err := c.store.Delete(v.Name); err != nil {
			return errors.Wrapf(err, errors.ErrFileWrite, "delete %s", v.Name)
		}
	}
	if len(env.Paths) > 0 {
		current, expand, found, err := c.store.Get(pathValue)
		if err != nil {
			return errors.Wrap(err, errors.ErrFileAccess, "read Path")
		}
		if found {
			var kept []string
			for _, e := range splitWinPath(current) {
				if !containsFold(env.Paths, e) {
					kept = append(kept, e)
				}
			}
			joined := strings.Join(kept, ";")
			if joined != current {
				set := c.store.SetString
				if expand {
					set = c.store.SetExpandString
				}
				if err := set(pathValue, joined); err != nil {
					return errors.Wrap(err, errors.ErrFileWrite, "set Path")
				}
			}
		}
	}
	c.notify()
	return nil
}

// savePrior keeps a user value that Apply is about to replace. An existing
// saved value wins, so applying twice never saves our own value.
func (c *RegistryConfigurator) savePrior(name, value string) error {
	current, expand, found, err := c.store.Get(name)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "read %s", name)
	}
	if !found || current == value {
		return nil
	}
	_, _, saved, err := c.store.Get(priorPrefix + name)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "read %s", priorPrefix+name)
	}
	if saved {
		return nil
	}
	set := c.store.SetString
	if expand {
		set = c.store.SetExpandString
	}
	if err := set(priorPrefix+name, current); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "set %s", priorPrefix+name)
	}
	return nil
}

// restorePrior puts back a value saved by savePrior and reports whether
// there was one.
func (c *RegistryConfigurator) restorePrior(name string) (bool, error) {
	prior, expand, found, err := c.store.Get(priorPrefix + name)
	if err != nil {
		return false, errors.Wrapf(err, errors.ErrFileAccess, "read %s", priorPrefix+name)
	}
	if !found {
		return false, nil
	}
	set := c.store.SetString
	if expand {
		set = c.store.SetExpandString
	}
	if err := set(name, prior); err != nil {
		return false, errors.Wrapf(err, errors.ErrFileWrite, "set %s", name)
	}
	if err := c.store.Delete(priorPrefix + name); err != nil {
		return false, errors.Wrapf(err, errors.ErrFileWrite, "delete %s", priorPrefix+name)
	}
	return true, nil
}

func splitWinPath(s string) []string {
	var out []string
	for _, e := range strings.Split(s, ";") {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}

func containsFold(list []string, p string) bool {
	p = strings.TrimRight(p, `\/`)
	for _, l := range list {
		if strings.EqualFold(strings.TrimRight(l, `\/`), p) {
			return true
		}
	}
	return false
}
