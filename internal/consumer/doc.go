// Package consumer adapts the realtime connection to the two kinds of
// downstream code that use it: status displays and cache invalidation.
//
// Subscriptions made through Bind and BindAny end when their context ends,
// which ties them to the lifetime of the component that created them.
package consumer
