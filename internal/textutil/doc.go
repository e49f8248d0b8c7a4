// Package textutil provides filename sanitization for video titles.
//
// Titles are folded to ASCII where a base letter exists (so "Café" becomes
// "Cafe"), then any character outside the safe set is replaced with a dash and
// the result is capped at MaxFileNameLength.
package textutil
