// Package registry resolves guard and update names used by declarative
// (YAML) flows into Go functions.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/parlance/pkg/domain"
	"github.com/aretw0/parlance/pkg/dsl"
	"github.com/aretw0/parlance/pkg/grammar"
	"github.com/mitchellh/mapstructure"
)

// GuardFactory builds a guard from its declared arguments.
type GuardFactory func(args map[string]any) (domain.Guard, error)

// UpdateFactory builds an update from its declared arguments.
type UpdateFactory func(args map[string]any) (domain.Update, error)

// Registry manages the available guards and updates.
type Registry struct {
	mu      sync.RWMutex
	guards  map[string]GuardFactory
	updates map[string]UpdateFactory
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		guards:  make(map[string]GuardFactory),
		updates: make(map[string]UpdateFactory),
	}
}

// RegisterGuard adds a guard factory.
// If a guard with the same name exists, it is overwritten.
func (r *Registry) RegisterGuard(name string, fn GuardFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.guards[name] = fn
}

// RegisterUpdate adds an update factory.
// If an update with the same name exists, it is overwritten.
func (r *Registry) RegisterUpdate(name string, fn UpdateFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates[name] = fn
}

// Guard looks up a guard by name and builds it.
func (r *Registry) Guard(name string, args map[string]any) (domain.Guard, error) {
	r.mu.RLock()
	fn, ok := r.guards[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("guard not found: %s", name)
	}
	g, err := fn(args)
	if err != nil {
		return nil, fmt.Errorf("guard %s: %w", name, err)
	}
	return g, nil
}

// Update looks up an update by name and builds it.
func (r *Registry) Update(name string, args map[string]any) (domain.Update, error) {
	r.mu.RLock()
	fn, ok := r.updates[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("update not found: %s", name)
	}
	u, err := fn(args)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", name, err)
	}
	return u, nil
}

// Clone returns an independent copy of the registry.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := NewRegistry()
	for name, fn := range r.guards {
		c.guards[name] = fn
	}
	for name, fn := range r.updates {
		c.updates[name] = fn
	}
	return c
}

// Names lists registered guards and updates, sorted.
func (r *Registry) Names() (guards, updates []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name := range r.guards {
		guards = append(guards, name)
	}
	for name := range r.updates {
		updates = append(updates, name)
	}
	sort.Strings(guards)
	sort.Strings(updates)
	return guards, updates
}

// decode maps loosely typed YAML arguments onto a typed struct.
func decode(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(args)
}

type categoryArgs struct {
	Category string `mapstructure:"category"`
	Value    string `mapstructure:"value"`
	Slot     string `mapstructure:"slot"`
}

type slotArgs struct {
	Slot  string `mapstructure:"slot"`
	Value any    `mapstructure:"value"`
}

type slotsArgs struct {
	Slots []string `mapstructure:"slots"`
}

type counterArgs struct {
	Counter string `mapstructure:"counter"`
	Min     int    `mapstructure:"min"`
}

type flagArgs struct {
	Flag  string `mapstructure:"flag"`
	Value bool   `mapstructure:"value"`
}

type phrasesArgs struct {
	Phrases []string `mapstructure:"phrases"`
	Intents []string `mapstructure:"intents"`
	Min     float64  `mapstructure:"min"`
}

func required(name, v string) error {
	if v == "" {
		return fmt.Errorf("missing argument '%s'", name)
	}
	return nil
}

// Default returns a registry with the built-in guards and updates bound to
// the resolver.
//
// Guards: yes, no, matches{category,value?}, said{phrases}, intent{intents},
// low_confidence{min}, has_slot{slot}, slot_equals{slot,value},
// flag{flag}, counter_at_least{counter,min}.
//
// Updates: capture{category,slot}, capture_utterance{slot}, set{slot,value},
// unset{slots}, set_flag{flag,value}, increment{counter}, reset_counter{counter}.
func Default(res *grammar.Resolver) *Registry {
	r := NewRegistry()
	r.Bind(res)

	r.RegisterGuard("said", func(args map[string]any) (domain.Guard, error) {
		var a phrasesArgs
		if err := decode(args, &a); err != nil {
			return nil, err
		}
		if len(a.Phrases) == 0 {
			return nil, fmt.Errorf("missing argument 'phrases'")
		}
		return dsl.Said(a.Phrases...), nil
	})
	r.RegisterGuard("low_confidence", func(args map[string]any) (domain.Guard, error) {
		var a phrasesArgs
		if err := decode(args, &a); err != nil {
			return nil, err
		}
		return dsl.ConfidenceBelow(a.Min), nil
	})
	r.RegisterGuard("has_slot", func(args map[string]any) (domain.Guard, error) {
		var a slotArgs
		if err := decode(args, &a); err != nil {
			return nil, err
		}
		if err := required("slot", a.Slot); err != nil {
			return nil, err
		}
		return dsl.HasSlot(a.Slot), nil
	})
	r.RegisterGuard("slot_equals", func(args map[string]any) (domain.Guard, error) {
		var a slotArgs
		if err := decode(args, &a); err != nil {
			return nil, err
		}
		if err := required("slot", a.Slot); err != nil {
			return nil, err
		}
		return dsl.SlotEquals(a.Slot, a.Value), nil
	})
	r.RegisterGuard("flag", func(args map[string]any) (domain.Guard, error) {
		var a flagArgs
		if err := decode(args, &a); err != nil {
			return nil, err
		}
		if err := required("flag", a.Flag); err != nil {
			return nil, err
		}
		return dsl.FlagSet(a.Flag), nil
	})
	r.RegisterGuard("counter_at_least", func(args map[string]any) (domain.Guard, error) {
		var a counterArgs
		if err := decode(args, &a); err != nil {
			return nil, err
		}
		if err := required("counter", a.Counter); err != nil {
			return nil, err
		}
		return dsl.CounterAtLeast(a.Counter, a.Min), nil
	})

	r.RegisterUpdate("capture_utterance", func(args map[string]any) (domain.Update, error) {
		var a slotArgs
		if err := decode(args, &a); err != nil {
			return nil, err
		}
		if err := required("slot", a.Slot); err != nil {
			return nil, err
		}
		return dsl.CaptureUtterance(a.Slot), nil
	})
	r.RegisterUpdate("set", func(args map[string]any) (domain.Update, error) {
		var a slotArgs
		if err := decode(args, &a); err != nil {
			return nil, err
		}
		if err := required("slot", a.Slot); err != nil {
			return nil, err
		}
		return dsl.Set(a.Slot, a.Value), nil
	})
	r.RegisterUpdate("unset", func(args map[string]any) (domain.Update, error) {
		var a slotsArgs
		if err := decode(args, &a); err != nil {
			return nil, err
		}
		return dsl.Unset(a.Slots...), nil
	})
	r.RegisterUpdate("set_flag", func(args map[string]any) (domain.Update, error) {
		var a flagArgs
		if err := decode(args, &a); err != nil {
			return nil, err
		}
		if err := required("flag", a.Flag); err != nil {
			return nil, err
		}
		return dsl.SetFlag(a.Flag, a.Value), nil
	})
	r.RegisterUpdate("increment", func(args map[string]any) (domain.Update, error) {
		var a counterArgs
		if err := decode(args, &a); err != nil {
			return nil, err
		}
		if err := required("counter", a.Counter); err != nil {
			return nil, err
		}
		return dsl.Increment(a.Counter), nil
	})
	r.RegisterUpdate("reset_counter", func(args map[string]any) (domain.Update, error) {
		var a counterArgs
		if err := decode(args, &a); err != nil {
			return nil, err
		}
		if err := required("counter", a.Counter); err != nil {
			return nil, err
		}
		return dsl.ResetCounter(a.Counter), nil
	})

	return r
}

// Bind (re)registers the factories that consult a resolver: yes, no,
// matches, intent and capture. Other entries are left untouched.
func (r *Registry) Bind(res *grammar.Resolver) {
	r.RegisterGuard("yes", func(map[string]any) (domain.Guard, error) { return dsl.Affirmative(res), nil })
	r.RegisterGuard("no", func(map[string]any) (domain.Guard, error) { return dsl.Negative(res), nil })
	r.RegisterGuard("matches", func(args map[string]any) (domain.Guard, error) {
		var a categoryArgs
		if err := decode(args, &a); err != nil {
			return nil, err
		}
		if err := required("category", a.Category); err != nil {
			return nil, err
		}
		if a.Value != "" {
			return dsl.MatchesValue(res, a.Category, a.Value), nil
		}
		return dsl.Matches(res, a.Category), nil
	})
	r.RegisterGuard("intent", func(args map[string]any) (domain.Guard, error) {
		var a phrasesArgs
		if err := decode(args, &a); err != nil {
			return nil, err
		}
		return dsl.IntentIs(res, a.Intents...), nil
	})
	r.RegisterUpdate("capture", func(args map[string]any) (domain.Update, error) {
		var a categoryArgs
		if err := decode(args, &a); err != nil {
			return nil, err
		}
		if err := required("category", a.Category); err != nil {
			return nil, err
		}
		slot := a.Slot
		if slot == "" {
			slot = a.Category
		}
		return dsl.Capture(res, a.Category, slot), nil
	})
}
