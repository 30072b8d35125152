// Package stub provides deterministic stage executors that synthesize
// placeholder artifacts without calling any external provider. They back
// per-run stub flags, deployments without provider credentials, and tests.
package stub
