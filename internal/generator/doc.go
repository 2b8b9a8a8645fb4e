// Package generator applies batches of file operations as a single unit with
// rollback on failure.
//
// # Transactions
//
// Stage operations, then apply them in order:
//
//	tx := generator.NewTransaction(afero.NewOsFs(), generator.WithLogger(log))
//	tx.Add(
//	    &generator.CopyFileOp{Source: tree, From: "db/schema.ts", To: "/app/db/schema.ts"},
//	    &generator.AppendFileOp{Source: tree, From: "lib/auth.ts", To: "/app/lib/auth.ts", Separator: "\n"},
//	)
//	if err := tx.Apply(ctx); err != nil {
//	    // everything the run created is already gone
//	    return err
//	}
//	defer tx.Rollback() // undo if a later step fails
//	...
//	tx.Commit()
//
// Apply validates every operation before touching disk, then executes them in
// order. The first failure stops the batch and rolls back.
//
// # What rollback undoes
//
// Every mutation lands in the transaction's Record:
//
//   - Created files are deleted.
//   - Replaced files (overwritten by a copy) get their previous content back.
//   - Directories the run created are removed when empty.
//   - Merged files (content appended to an existing file) are NOT reverted.
//     They are reported so the operator can review them.
//
// Rollback is idempotent and safe to call from an interrupt path and the
// failure path at the same time. Commit discards the record; a later Rollback
// does nothing.
package generator
