package rules

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ChangeOp identifies a registry mutation.
type ChangeOp string

const (
	OpAdded   ChangeOp = "added"
	OpUpdated ChangeOp = "updated"
	OpRemoved ChangeOp = "removed"
)

// Change is handed to the Journal before a mutation becomes visible.
type Change struct {
	Op   ChangeOp
	Rule Rule
}

// Journal persists registry changes. A Record error aborts the mutation.
type Journal interface {
	Record(ctx context.Context, change Change) error
}

// Snapshot is an immutable view of the rule set. Evaluations take one
// snapshot up front so rules cannot appear or disappear mid-run.
type Snapshot struct {
	rules   []Rule
	version uint64
}

// NewSnapshot validates rules and freezes them in the given order.
func NewSnapshot(rules []Rule) (*Snapshot, error) {
	out := make([]Rule, 0, len(rules))
	seen := make(map[string]struct{}, len(rules))
	for i, rule := range rules {
		rule = rule.withDefaults()
		if err := rule.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[rule.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRuleID, rule.ID)
		}
		seen[rule.ID] = struct{}{}
		rule.seq = uint64(i + 1)
		out = append(out, rule)
	}
	return &Snapshot{rules: out}, nil
}

// WithVersion returns a copy of s stamped with version. Loaders use it to
// carry the persisted rule revision.
func (s *Snapshot) WithVersion(version uint64) *Snapshot {
	return &Snapshot{rules: s.rules, version: version}
}

// Rules returns every rule, active or not, in registry order.
func (s *Snapshot) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Active returns the rules an evaluation should run, in registry order.
func (s *Snapshot) Active() []Rule {
	out := make([]Rule, 0, len(s.rules))
	for _, rule := range s.rules {
		if rule.Active {
			out = append(out, rule)
		}
	}
	return out
}

// Get returns the rule with id.
func (s *Snapshot) Get(id string) (Rule, bool) {
	for _, rule := range s.rules {
		if rule.ID == id {
			return rule, true
		}
	}
	return Rule{}, false
}

// Len returns the number of rules, active or not.
func (s *Snapshot) Len() int {
	return len(s.rules)
}

// Version increases with every published mutation.
func (s *Snapshot) Version() uint64 {
	return s.version
}

// Registry owns the rule set. Writers are serialized; readers grab the current
// snapshot pointer and never observe a half-applied change.
type Registry struct {
	writeMu sync.Mutex // serializes mutations, held across the journal call

	mu      sync.RWMutex
	current *Snapshot
	retired map[string]struct{}
	nextSeq uint64

	journal Journal
	now     func() time.Time
}

// NewRegistry constructs an empty registry. journal may be nil.
func NewRegistry(journal Journal) *Registry {
	return &Registry{
		current: &Snapshot{},
		retired: make(map[string]struct{}),
		journal: journal,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Snapshot returns the current immutable rule set.
func (r *Registry) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// List returns all rules in insertion order.
func (r *Registry) List() []Rule {
	return r.Snapshot().Rules()
}

// Get returns one rule by id.
func (r *Registry) Get(id string) (Rule, error) {
	rule, ok := r.Snapshot().Get(id)
	if !ok {
		return Rule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	return rule, nil
}

// Add registers a new rule. Ids that exist or were removed earlier are refused.
func (r *Registry) Add(ctx context.Context, rule Rule) (Rule, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	rule = rule.withDefaults()
	if err := rule.Validate(); err != nil {
		return Rule{}, err
	}
	snap := r.Snapshot()
	if _, exists := snap.Get(rule.ID); exists || r.isRetired(rule.ID) {
		return Rule{}, fmt.Errorf("%w: %s", ErrDuplicateRuleID, rule.ID)
	}
	now := r.now()
	rule.Version = 1
	rule.CreatedAt = now
	rule.UpdatedAt = now
	rule.seq = r.nextSeq + 1
	if err := r.record(ctx, OpAdded, rule); err != nil {
		return Rule{}, err
	}
	next := append(snap.Rules(), rule)
	r.publish(next, func() { r.nextSeq = rule.seq })
	return rule, nil
}

// Update applies a partial change to an existing rule.
func (r *Registry) Update(ctx context.Context, id string, patch Patch) (Rule, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	snap := r.Snapshot()
	rules := snap.Rules()
	i := indexOf(rules, id)
	if i < 0 {
		return Rule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	// Weight 0 falls back to the priority default here too, as on Add and Restore.
	updated := rules[i].apply(patch).withDefaults()
	if err := updated.Validate(); err != nil {
		return Rule{}, err
	}
	updated.Version++
	updated.UpdatedAt = r.now()
	if err := r.record(ctx, OpUpdated, updated); err != nil {
		return Rule{}, err
	}
	rules[i] = updated
	r.publish(rules, nil)
	return updated, nil
}

// SetActive toggles a rule on or off for subsequent evaluations.
func (r *Registry) SetActive(ctx context.Context, id string, active bool) (Rule, error) {
	return r.Update(ctx, id, Patch{Active: &active})
}

// Remove deletes a rule. Its id is retired and cannot be added again, so past
// reports stay unambiguous about which definition applied.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	snap := r.Snapshot()
	rules := snap.Rules()
	i := indexOf(rules, id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	if err := r.record(ctx, OpRemoved, rules[i]); err != nil {
		return err
	}
	next := append(rules[:i:i], rules[i+1:]...)
	r.publish(next, func() { r.retired[id] = struct{}{} })
	return nil
}

// Restore replaces the registry contents with persisted state. rules must be
// in insertion order. Nothing is journaled.
func (r *Registry) Restore(rules []Rule, retired []string) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	snap, err := NewSnapshot(rules)
	if err != nil {
		return err
	}
	gone := make(map[string]struct{}, len(retired))
	for _, id := range retired {
		if _, live := snap.Get(id); live {
			return fmt.Errorf("%w: %s is both live and retired", ErrDuplicateRuleID, id)
		}
		gone[id] = struct{}{}
	}
	now := r.now()
	restored := snap.Rules()
	for i := range restored {
		if restored[i].Version == 0 {
			restored[i].Version = 1
		}
		if restored[i].CreatedAt.IsZero() {
			restored[i].CreatedAt = now
		}
		if restored[i].UpdatedAt.IsZero() {
			restored[i].UpdatedAt = restored[i].CreatedAt
		}
	}
	r.publish(restored, func() {
		r.retired = gone
		r.nextSeq = uint64(len(restored))
	})
	return nil
}

func (r *Registry) isRetired(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.retired[id]
	return ok
}

func (r *Registry) record(ctx context.Context, op ChangeOp, rule Rule) error {
	if r.journal == nil {
		return nil
	}
	if err := r.journal.Record(ctx, Change{Op: op, Rule: rule}); err != nil {
		return fmt.Errorf("record %s rule %s: %w", op, rule.ID, err)
	}
	return nil
}

// publish swaps in a new snapshot; extra runs under the same lock.
func (r *Registry) publish(rules []Rule, extra func()) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].seq != rules[j].seq {
			return rules[i].seq < rules[j].seq
		}
		return rules[i].ID < rules[j].ID
	})
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = &Snapshot{rules: rules, version: r.current.version + 1}
	if extra != nil {
		extra()
	}
}

func indexOf(rules []Rule, id string) int {
	for i, rule := range rules {
		if rule.ID == id {
			return i
		}
	}
	return -1
}
