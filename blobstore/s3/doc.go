// Package s3 provides an Amazon S3 implementation of the blobstore.Store
// interface, plus a DynamoDB-backed commit store for tracking the latest
// completed backup.
//
// # Usage
//
//	store, err := s3.NewFromEnv(ctx, "my-bucket", "backups/db1")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = db.Backup(ctx, store)
package s3
