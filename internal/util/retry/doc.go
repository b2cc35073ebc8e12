// Package retry provides exponential backoff retry logic for transient failures.
//
// The [Do] function retries an operation with configurable max attempts,
// initial delay, maximum delay, and a wall-clock budget. It is used for cloud
// provider and cluster API calls that may fail transiently.
package retry
