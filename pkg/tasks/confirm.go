package tasks

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Confirm asks question on out until the answer read from in is yes or no.
// An empty answer, or running out of input, means no.
func Confirm(in io.Reader, out, errOut io.Writer, question string) (bool, error) {
	reader := bufio.NewReader(in)
	for {
		fmt.Fprint(out, question)

		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, err
		}
		response := strings.ToLower(strings.TrimSpace(line))

		switch response {
		case "", "n", "no":
			return false, nil
		case "y", "yes":
			return true, nil
		}

		if errors.Is(err, io.EOF) {
			return false, nil
		}
		fmt.Fprintln(errOut, "Focus, kid! It is either (y)es or (n)o")
	}
}
