// Package tenant models the isolation key scoping every read and write.
//
// A Key is an immutable value object built once per call and passed
// everywhere, so the isolation invariant (every query carries the tenant
// filter) lives in exactly one place: Predicate.
package tenant

import (
	"strings"

	"github.com/tiermem/tiermem/internal/memerr"
)

// DefaultNamespace is used when no namespace is given.
const DefaultNamespace = "default"

// MaxNamespaceLen is the maximum namespace length in bytes.
const MaxNamespaceLen = 77

// Key identifies an isolation scope.
//
// Empty AssistantID or SessionID means "unset": writes store SQL NULL and
// reads apply no filter for that column, so an empty SessionID searches
// across all sessions for the user. Empty UserID selects legacy
// single-tenant mode where Namespace alone scopes rows.
type Key struct {
	UserID      string
	AssistantID string
	SessionID   string
	Namespace   string
}

// NewKey validates the parts and returns a Key with the namespace
// coerced to DefaultNamespace when empty.
func NewKey(userID, assistantID, sessionID, namespace string) (Key, error) {
	ns, err := normalizeNamespace(namespace)
	if err != nil {
		return Key{}, err
	}
	return Key{
		UserID:      userID,
		AssistantID: assistantID,
		SessionID:   sessionID,
		Namespace:   ns,
	}, nil
}

// Resolve merges an explicit key over instance defaults, field by field.
// Precedence: explicit value > default value > DefaultNamespace.
func Resolve(explicit, defaults Key) (Key, error) {
	k := explicit
	if k.UserID == "" {
		k.UserID = defaults.UserID
	}
	if k.AssistantID == "" {
		k.AssistantID = defaults.AssistantID
	}
	if k.SessionID == "" {
		k.SessionID = defaults.SessionID
	}
	if k.Namespace == "" {
		k.Namespace = defaults.Namespace
	}
	return NewKey(k.UserID, k.AssistantID, k.SessionID, k.Namespace)
}

func normalizeNamespace(ns string) (string, error) {
	if ns == "" {
		return DefaultNamespace, nil
	}
	if len(ns) > MaxNamespaceLen {
		return "", memerr.Validationf("namespace", memerr.KindRange,
			"must be at most %d bytes, got %d", MaxNamespaceLen, len(ns))
	}
	return ns, nil
}

// Legacy reports whether the key scopes by namespace alone.
func (k Key) Legacy() bool { return k.UserID == "" }

// String renders the key for logging and cache keys. Unset parts render
// as "*". Record content never appears here.
func (k Key) String() string {
	part := func(s string) string {
		if s == "" {
			return "*"
		}
		return s
	}
	return strings.Join([]string{
		part(k.UserID), part(k.AssistantID), part(k.SessionID), k.Namespace,
	}, "/")
}

// Predicate builds the mandatory tenant filter for a query. alias is the
// table alias prefix including the dot ("m." or ""). The returned SQL
// uses ? placeholders and is joined into WHERE clauses with AND.
//
// Session and assistant filters are only applied when set; an unset
// SessionID deliberately matches rows from every session, including rows
// stored with a NULL session.
func (k Key) Predicate(alias string) (string, []any) {
	var conds []string
	var args []any

	if k.Legacy() {
		conds = append(conds, alias+"namespace = ?")
		args = append(args, k.Namespace)
	} else {
		conds = append(conds, alias+"user_id = ?", alias+"namespace = ?")
		args = append(args, k.UserID, k.Namespace)
	}
	if k.AssistantID != "" {
		conds = append(conds, alias+"assistant_id = ?")
		args = append(args, k.AssistantID)
	}
	if k.SessionID != "" {
		conds = append(conds, alias+"session_id = ?")
		args = append(args, k.SessionID)
	}

	return strings.Join(conds, " AND "), args
}
