// Package storage manages the managed output root where converted files land.
//
// Root confines every path handed out to callers to the output directory,
// probes free space on the backing filesystem with statfs, and verifies the
// daemon can write there before it starts accepting work.
package storage
