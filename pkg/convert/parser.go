package convert

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/grafana/flamekeeper/pkg/flamegraph"
)

const maxLineSize = 16 << 20

// format:
// frame-a;frame-b;frame-c 1
// frame-a;frame-d 2
//
// Lines without a count, or with a count that is not a positive integer, are
// skipped. The stack passed to cb is only valid for the duration of the call.
func ParseGroups(r io.Reader, cb func(stack []byte, val int)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, bufio.MaxScanTokenSize), maxLineSize)
	for scanner.Scan() {
		line := bytes.TrimRight(scanner.Bytes(), "\r")
		index := bytes.LastIndexByte(line, ' ')
		if index <= 0 {
			continue
		}
		i, err := strconv.Atoi(string(line[index+1:]))
		if err != nil || i < 1 {
			continue
		}
		cb(line[:index], i)
	}
	return scanner.Err()
}

// format:
// frame-a;frame-b;frame-c
// frame-a;frame-d
// frame-a;frame-d
//
// Identical lines are counted. Stacks are reported in order of first
// appearance.
func ParseIndividualLines(r io.Reader, cb func(stack []byte, val int)) error {
	var keys []string
	groups := make(map[string]int)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, bufio.MaxScanTokenSize), maxLineSize)
	for scanner.Scan() {
		key := strings.TrimRight(scanner.Text(), "\r")
		if key == "" {
			continue
		}
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key]++
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	for _, k := range keys {
		cb([]byte(k), groups[k])
	}
	return nil
}

// FoldedToTree builds a tree out of folded stacks, using the count of each
// line as the weight of its stack.
func FoldedToTree(r io.Reader) (*flamegraph.Node, error) {
	return parseToTree(r, ParseGroups)
}

func parseToTree(r io.Reader, parse func(io.Reader, func([]byte, int)) error) (*flamegraph.Node, error) {
	b := flamegraph.NewBuilder()
	var names []string
	err := parse(r, func(stack []byte, val int) {
		names = names[:0]
		for _, name := range bytes.Split(stack, []byte{';'}) {
			if len(name) > 0 {
				names = append(names, string(name))
			}
		}
		b.AddStack(names, int64(val))
	})
	return b.Root(), err
}
