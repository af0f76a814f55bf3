package docstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/academia"
	"github.com/google/cel-go/cel"
)

// Op is a document operation checked by the access rules.
type Op string

const (
	OpGet    Op = "get"
	OpList   Op = "list"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

const (
	CollectionUsers    = "users"
	CollectionMentors  = "mentors"
	CollectionCourses  = "courses"
	CollectionBookings = "bookings"
)

const (
	maxRuleCost = 10_000
	ruleTimeout = time.Second
)

// DefaultRules returns the access rules keyed by "collection.op". Anything
// without a rule is denied.
func DefaultRules() map[string]string {
	const admin = `signed_in && auth_role == "admin"`
	return map[string]string{
		"users.get":    `signed_in && (auth_uid == doc_id || auth_role == "admin")`,
		"users.list":   admin,
		"users.create": `signed_in && auth_uid == doc_id && doc.role == "apprentice"`,
		"users.update": admin,
		"users.delete": admin,

		"mentors.get":    `true`,
		"mentors.list":   `true`,
		"mentors.create": admin,
		"mentors.update": admin,
		"mentors.delete": admin,

		"courses.get":    `true`,
		"courses.list":   `true`,
		"courses.create": admin,
		"courses.update": admin,
		"courses.delete": admin,

		"bookings.get":    admin,
		"bookings.list":   admin,
		"bookings.create": `signed_in && doc.user_id == auth_uid && doc.status == "Pendiente"`,
		"bookings.update": admin,
		"bookings.delete": admin,
	}
}

// Request is one operation to authorize.
type Request struct {
	Collection string
	Op         Op
	DocID      string
	Doc        map[string]any
	Caller     academia.Caller
	CallerRole academia.Role
}

// Rules evaluates CEL access rules.
type Rules struct {
	env      *cel.Env
	programs map[string]cel.Program
	sources  map[string]string
}

// NewRules compiles DefaultRules with overrides applied on top. An override
// with an empty expression removes the rule, which denies the operation.
func NewRules(overrides map[string]string) (*Rules, error) {
	env, err := cel.NewEnv(
		cel.Variable("signed_in", cel.BoolType),
		cel.Variable("auth_uid", cel.StringType),
		cel.Variable("auth_role", cel.StringType),
		cel.Variable("collection", cel.StringType),
		cel.Variable("op", cel.StringType),
		cel.Variable("doc_id", cel.StringType),
		cel.Variable("doc", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rules environment: %w", err)
	}

	sources := DefaultRules()
	for key, expr := range overrides {
		key = strings.ToLower(strings.TrimSpace(key))
		if strings.TrimSpace(expr) == "" {
			delete(sources, key)
			continue
		}
		sources[key] = expr
	}

	r := &Rules{
		env:      env,
		programs: make(map[string]cel.Program, len(sources)),
		sources:  sources,
	}

	for key, expr := range sources {
		prg, err := r.compile(expr)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", key, err)
		}
		r.programs[key] = prg
	}

	return r, nil
}

func (r *Rules) compile(expression string) (cel.Program, error) {
	ast, issues := r.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compilation failed: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("rule must return a bool, got %s", ast.OutputType())
	}

	prg, err := r.env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxRuleCost),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation failed: %w", err)
	}
	return prg, nil
}

// Keys lists the configured rule keys, sorted.
func (r *Rules) Keys() []string {
	keys := make([]string, 0, len(r.sources))
	for k := range r.sources {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Source returns the expression for key.
func (r *Rules) Source(key string) (string, bool) {
	s, ok := r.sources[key]
	return s, ok
}

// Allow evaluates the rule for req. Evaluation errors deny.
func (r *Rules) Allow(ctx context.Context, req Request) (bool, error) {
	key := req.Collection + "." + string(req.Op)
	prg, ok := r.programs[key]
	if !ok {
		return false, nil
	}

	doc := req.Doc
	if doc == nil {
		doc = map[string]any{}
	}

	activation := map[string]any{
		"signed_in":  !req.Caller.Anonymous(),
		"auth_uid":   req.Caller.UID,
		"auth_role":  string(req.CallerRole),
		"collection": req.Collection,
		"op":         string(req.Op),
		"doc_id":     req.DocID,
		"doc":        doc,
	}

	ctx, cancel := context.WithTimeout(ctx, ruleTimeout)
	defer cancel()

	result, _, err := prg.ContextEval(ctx, activation)
	if err != nil {
		return false, fmt.Errorf("evaluation failed: %w", err)
	}

	allowed, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rule did not return a boolean, got %T", result.Value())
	}
	return allowed, nil
}
