package embedding

import (
	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

// init registers the vec0 virtual table module against mattn/go-sqlite3's
// connection hook, process-wide, before any sql.Open call in store.Open.
// store.tryEnableVec only verifies the module loaded; the actual
// registration has to happen exactly once, here, since sqlite3's module
// registry is global per process.
func init() {
	sqlite_vec.Auto()
}
