// Package textutil holds the small text helpers shared by the stages:
// slugs for file names, line wrapping for subtitles and images, and
// term-frequency fingerprints used to rank stock footage against a b-roll
// description.
//
// Tokenization folds accents and case before splitting on non-alphanumeric
// runs, and drops tokens shorter than three characters.
package textutil
