// Package schema declares the registrable entity descriptions of the runtime
// (agents, tools, swarms, completions, embeddings, storages, states) and the
// generic name-keyed registry that holds them. Registration is additive and
// replace-only; name collision policy lives in the validation package, not
// here.
package schema
