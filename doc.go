// Package tutaexport authenticates against a proprietary
// end-to-end-encrypted mail service's REST-like API, enumerates a
// signed-in user's folders, and exports every mail in a chosen folder
// to standards-conforming RFC 2822 + MIME message files on disk.
//
// The package is read-only: it never modifies server state, never
// re-encrypts, and exports a single snapshot of whatever the server
// returns for the duration of the run.
//
// Basic usage:
//
//	client, err := tutaexport.New(ctx, username, password)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	folders, err := client.ListFolders(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	summary, err := client.Export(ctx, "Inbox", "./out")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("exported %d, skipped %d\n", summary.Exported, summary.Skipped)
package tutaexport
