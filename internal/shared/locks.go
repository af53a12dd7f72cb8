package shared

import "fmt"

// ICJEBillLockKey builds the redis key guarding journal generation for one vendor bill.
func ICJEBillLockKey(billID int64) string {
	return fmt.Sprintf("icje:bill:%d:lock", billID)
}
