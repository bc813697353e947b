// Package callin implements the callin dispatch chain.
//
// A base method call that has active teams is turned into an [Invocation]:
// a snapshot of the active teams in precedence order, one callin id per
// team, the bound method id and the arguments. [Invocation.CallAllBindings]
// runs three phases for the team at an index:
//
//  1. Before advice. Skipped for constructor join points.
//  2. Replace advice, which may call [Frame.CallNext] zero or more times.
//     Constructor join points go straight to CallNext.
//  3. After advice, which sees the phase-2 result but cannot change it.
//
// CallNext runs the next team's three phases nested inside the current
// replace advice, or the original method once no team is left. The
// snapshot never changes during an invocation, even if a team is
// deactivated while advice runs.
//
// Errors returned by advice or by the original method reach the caller
// unchanged, and panics are not recovered. After advice of a team only runs
// when its replace phase returned normally.
//
// [Linkage] plays the role of the weaver output: it knows which team binds
// which base method under which callin id, implements [team.Registrar] so
// activation registers teams at their bases, and offers the call site
// ([Base.Invoke], [Linkage.Call]) that snapshots active teams.
package callin
