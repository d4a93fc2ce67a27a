// Package components holds the landing page building blocks. The script in
// static/intro.js finds them by id and data attribute.
package components
