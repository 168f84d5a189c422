// Package makeset is the standard make-equivalent ruleset collaborator: it
// supplies the Test/Commands behavior for the current/1 rule type.
//
// Test reports a target file current when it exists and is no older than any
// of the files its rule's antecedents name. Commands rebuilds the target by
// expanding the first command template whose pattern matches the target name
// and running it via `sh -c`.
package makeset
