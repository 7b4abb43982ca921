// Package testinfra starts the containers used by integration tests.
//
// Tests that need a real MongoDB carry the integration build tag and call
// Mongo, which starts one container per test binary and hands every caller
// its own database:
//
//	//go:build integration
//
//	func TestStore(t *testing.T) {
//	    db := testinfra.Mongo(t)
//	    store := usage.NewMongoStore(db)
//	    // ...
//	}
//
// Run them with:
//
//	go test -tags integration ./...
package testinfra
