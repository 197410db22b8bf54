// Package book implements the concurrent in-memory index of a limit
// order book: two price-ordered binary search trees of price levels
// (one per side), an intrusive FIFO queue of resting orders at each
// level, and lock-free hash indexes for order-id and price lookup.
//
// Tree insertion, index insertion and the cached best-price pointers
// are lock-free (CAS retry loops). Queue mutation is serialized behind
// a small per-level mutex; queue links are still atomic pointers so
// snapshot readers may traverse concurrently without taking the lock.
//
// The package never removes an emptied price level from its tree and
// never physically frees an index entry; both are logical-deletion
// designs. Reclamation of cancelled orders is the caller's concern
// (see infra/memory).
package book
