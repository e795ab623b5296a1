package manifest

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	binderrors "git.home.luguber.info/inful/bindery/internal/errors"
	"git.home.luguber.info/inful/bindery/internal/fragment"
	"git.home.luguber.info/inful/bindery/internal/logfields"
)

// Resolution is the outcome of resolving one target: the manifest plus its
// fragments in exact declaration order.
type Resolution struct {
	Target    string
	Manifest  *Manifest
	Fragments []*fragment.Fragment
}

// Words sums the word counts of all resolved fragments.
func (r *Resolution) Words() int {
	total := 0
	for _, f := range r.Fragments {
		total += f.Words
	}
	return total
}

// Resolver resolves target manifests against a fragment store. Resolution
// is a pure read; it never reorders, deduplicates, or writes.
type Resolver struct {
	store      fragment.Store
	dir        string
	fullTarget string
	logger     *slog.Logger
}

// NewResolver builds a resolver over a fragment store and manifests dir.
// fullTarget names the manifest every other target is validated against.
func NewResolver(store fragment.Store, dir, fullTarget string) *Resolver {
	return &Resolver{store: store, dir: dir, fullTarget: fullTarget, logger: slog.Default()}
}

// Resolve loads the target's manifest and resolves every entry. Entry
// order in the result equals manifest declaration order exactly. Non-full
// targets are additionally validated to be subsequences of the full
// manifest when one exists.
func (r *Resolver) Resolve(target string) (*Resolution, error) {
	m, err := ParseFile(r.dir, target)
	if err != nil {
		return nil, err
	}

	if err := r.checkSubsequence(m); err != nil {
		return nil, err
	}

	fragments := make([]*fragment.Fragment, 0, len(m.Entries))
	for _, entry := range m.Entries {
		frag, err := r.store.Read(entry.ID)
		if err != nil {
			if fragment.IsNotFound(err) {
				return nil, binderrors.MissingFragment(target, entry.ID).
					WithContext("line", entry.Line)
			}
			return nil, fmt.Errorf("resolving %s entry %s: %w", target, entry.ID, err)
		}
		fragments = append(fragments, frag)
	}

	r.logger.Debug("resolved manifest",
		logfields.Target(target),
		logfields.Count(len(fragments)))

	return &Resolution{Target: target, Manifest: m, Fragments: fragments}, nil
}

// Validate parses every manifest in the resolver's dir and checks each
// non-full target against the full manifest's order. Fragment existence
// is Resolve's concern; Validate enforces manifest-level invariants only.
func (r *Resolver) Validate() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("reading manifests dir: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ext) {
			continue
		}
		m, err := ParseFile(r.dir, strings.TrimSuffix(name, ext))
		if err != nil {
			return err
		}
		if err := r.checkSubsequence(m); err != nil {
			return err
		}
	}
	return nil
}

// checkSubsequence enforces that non-full targets are order-preserving
// subsets of the full manifest. Absent full manifest means nothing to
// check against.
func (r *Resolver) checkSubsequence(m *Manifest) error {
	if m.Target == r.fullTarget || !Exists(r.dir, r.fullTarget) {
		return nil
	}
	full, err := ParseFile(r.dir, r.fullTarget)
	if err != nil {
		return fmt.Errorf("loading full manifest to validate %s: %w", m.Target, err)
	}
	if ok, offender := IsSubsequence(m.IDs(), full.IDs()); !ok {
		return binderrors.SubsequenceViolation(m.Target,
			fmt.Sprintf("entry %q is missing from or out of order relative to %s", offender, r.fullTarget))
	}
	return nil
}
