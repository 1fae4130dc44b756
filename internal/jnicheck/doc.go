// Package jnicheck validates native-interface calls against the reference
// lifetime, type and access protocol of a managed runtime.
//
// A Checker owns the process-wide state: the identifier metadata cache, the
// global reference registry, the resource ledger and the registry of call
// contexts. Each native thread gets a Context holding its local frame stack
// and critical-region depth. The dispatch layer calls predicates on the
// Checker before or after every intercepted call:
//
//	s, _ := chk.ContextFor(env)
//	ok := chk.CheckEnvMatch(s, env, "CallVoidMethodA") &&
//	    chk.CheckNoException(s, "CallVoidMethodA") &&
//	    chk.CheckInstanceCall(s, obj, mid, jnicheck.ArrayArgs(vals), 'V', "CallVoidMethodA")
//
// Predicates never stop the monitored program. A failing predicate reports
// exactly one diagnostic to the configured diag.Sink and returns false.
// Bugs in the checker itself (frame stack underflow, failing runtime
// queries, corrupt cached metadata) go to the invariant handler instead.
//
// Strictness follows the runtime phase: in the bootstrap and start phases
// liveness is assumed and unknown identifiers pass; in the live phase every
// check is enforced; once the runtime is dead per-call predicates pass
// without checking and only AuditLeaks remains meaningful.
package jnicheck
