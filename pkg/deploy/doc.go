// Package deploy pushes a session's archive to a hosting provider.
//
// Each provider is an Adapter that runs the same three steps: provision a
// remote site or service, upload the zip archive, and trigger a deploy
// where the provider needs an explicit call. The Dispatcher selects the
// Adapter for a Target, drives the steps in order and folds every failure
// into a Result, so callers always get a value back:
//
//	idle -> provisioning -> uploading -> triggering -> done
//	  \____________\______________\____________\____> failed
//
// There are no retries. A per-target circuit breaker fails fast after
// repeated network failures.
//
// TriggerHooks covers the hook-URL style of deploy: one POST per configured
// provider hook, each reported as ok, failed, error or skipped.
package deploy
