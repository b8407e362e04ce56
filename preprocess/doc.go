// Package preprocess turns a raw labeled recipe table into a numeric
// one-hot feature table that similarity.Engine accepts.
//
// New validates the raw table and resolves duplicate ids. Run then applies
// the stages in order: Select, RectifyCountries, ReplaceWhitespace,
// Lowercase, ConvertNA, ConvertPrepTime and OneHot. Every stage is a pure
// function from table to table and can be used on its own.
package preprocess
