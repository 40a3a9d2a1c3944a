// Package catalog builds per-model effect catalogs from vendor scene
// metadata.
//
// The vendor document is an irregular, duplicate-laden tree (scene groups
// → scenes → optional sub-effects). The builder flattens it into a single
// ordered sequence of leaves, disambiguates colliding display names with
// " (n)" suffixes in first-seen order, and compiles each leaf's scene code
// and parameters once into the exact command byte template either wire
// protocol needs. No leaf is ever dropped for being a duplicate, and scene
// code zero is a valid, meaningful code.
//
// Compiled catalogs are cacheable through SQLiteCache keyed on
// (device model, metadata version); a cold cache simply re-parses.
package catalog
