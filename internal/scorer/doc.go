// Package scorer classifies chat messages. Classifiers may fail; Safe turns
// any classifier into a domain.Scorer that never does.
package scorer
