// Command gguf-dump parses a GGUF model file's header and tensor
// directory and writes a CSV tensor-metadata dump to standard output,
// per §4.6. Diagnostics go to standard error; exit code 1 on missing
// argument, open failure, or any malformed-file condition.
package main

import (
	"bufio"
	"fmt"
	"os"

	"tensortrace/internal/gguf"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <model.gguf>\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "Output: CSV with tensor metadata")
		os.Exit(1)
	}

	filename := os.Args[1]
	f, err := os.Open(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open %s: %v\n", filename, err)
		os.Exit(1)
	}
	defer f.Close()

	file, err := gguf.Parse(bufio.NewReader(f))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "GGUF file: %s\n", filename)
	fmt.Fprintf(os.Stderr, "Version: %d\n", file.Version)
	fmt.Fprintf(os.Stderr, "Tensors: %d\n", len(file.Tensors))

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	fmt.Fprintln(out, "tensor_name,file_offset,size_bytes,layer_id,component_type,n_dims,dim0,dim1,dim2,dim3")
	for _, t := range file.Tensors {
		fmt.Fprintf(out, "%s,%d,%d,%d,%s,%d,%d,%d,%d,%d\n",
			t.Name, t.FileOffset, t.SizeBytes, t.LayerID, t.ComponentType, t.NumDims,
			t.Dims[0], t.Dims[1], t.Dims[2], t.Dims[3])
	}

	fmt.Fprintf(os.Stderr, "\nDumped %d tensors\n", len(file.Tensors))
}
