package vault

import "fmt"

// CorruptVaultDataError reports stored data that cannot be decoded. It is
// never treated as "no value".
type CorruptVaultDataError struct {
	Key    string
	Reason string
}

func (e *CorruptVaultDataError) Error() string {
	return fmt.Sprintf("corrupt vault data for %q: %s", e.Key, e.Reason)
}

// VaultReadError wraps a failed backend read.
type VaultReadError struct {
	Key string
	Err error
}

func (e *VaultReadError) Error() string {
	return fmt.Sprintf("reading vault entry %q: %v", e.Key, e.Err)
}

func (e *VaultReadError) Unwrap() error { return e.Err }

// VaultWriteError wraps a failed backend write.
type VaultWriteError struct {
	Key string
	Err error
}

func (e *VaultWriteError) Error() string {
	return fmt.Sprintf("writing vault entry %q: %v", e.Key, e.Err)
}

func (e *VaultWriteError) Unwrap() error { return e.Err }
