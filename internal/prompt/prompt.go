// Package prompt reads operator answers from a terminal or any reader.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Confirm prints message and reads one line. It reports true only when the
// answer equals phrase. With fold set the answer is upper-cased before the
// compare; without it the compare is exact. Read errors, including EOF
// with no answer, count as a refusal.
func Confirm(in io.Reader, out io.Writer, message, phrase string, fold bool) bool {
	fmt.Fprintf(out, "%s Type '%s' to confirm: ", message, phrase)
	answer, ok := readLine(in)
	if !ok {
		fmt.Fprintln(out)
		return false
	}
	if fold {
		answer = strings.ToUpper(answer)
	}
	return answer == phrase
}

// Ask prints label and returns the trimmed answer.
func Ask(in io.Reader, out io.Writer, label string) (string, bool) {
	fmt.Fprintf(out, "%s: ", label)
	return readLine(in)
}

func readLine(in io.Reader) (string, bool) {
	reader, ok := in.(*bufio.Reader)
	if !ok {
		reader = bufio.NewReader(in)
	}
	line, err := reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", false
	}
	return strings.TrimSpace(line), true
}
