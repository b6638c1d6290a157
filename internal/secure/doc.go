// Package secure holds freshly-generated credential material — a rotated
// password, a regenerated storage key, a provisioned database login — in
// locked, encrypted memory for the narrow window between generation and the
// single external call (cloud API patch, DDL execution, secret-store write)
// that consumes it.
//
// The rotation strategies never hold generated plaintext in an ordinary Go
// string for longer than that window: WithGeneratedSecret seals it in a
// memguard enclave, hands the caller a locked, mlocked copy for the duration
// of one callback, and destroys both the locked copy and the enclave before
// returning.
//
// # Platform behavior
//
// Memory locking (mlock/VirtualLock) is attempted on every platform; if the
// process's RLIMIT_MEMLOCK is too low, memguard degrades gracefully rather
// than failing the rotation.
//
// # What this buys, and what it doesn't
//
// A core dump taken while a rotation is in flight will not contain the
// plaintext password, and the plaintext is zeroed as soon as the callback
// returns rather than waiting for garbage collection. It does nothing
// against an attacker who already has root on the host, or against
// hardware-level side channels.
package secure
