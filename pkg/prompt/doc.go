// Package prompt fills a form instance interactively. A Filler walks the
// visible fields in order, asks a Driver for each value and feeds the answers
// back into the instance, so fields revealed by earlier answers are asked in
// the same session. The default Driver uses survey.
package prompt
