// Package daemon coordinates the long-running Convify process.
//
// It wires configuration, the job store, the executor, the retention sweeper,
// the optional history archive and Redis mirror, and the HTTP API into a
// single lifecycle. A flock-based lock file prevents two daemons from sharing
// one data directory.
//
// Keep orchestration logic here: conversion steps live in their own packages
// while the daemon focuses on startup, shutdown, and high level coordination.
package daemon
