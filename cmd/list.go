package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gosuri/uitable"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"go.dot.industries/strata/internal/config"
	"go.dot.industries/strata/internal/jsontree"
)

const maskedValue = "(secure value)"

var (
	flagListLocations bool
	flagListRoot      bool
	flagListRFJ       bool
)

func init() {
	listCmd.Flags().BoolVar(&flagListLocations, "locations", false, "show each configuration file separately")
	listCmd.Flags().BoolVar(&flagListRoot, "root", false, "list only the keys at the given path")
	listCmd.Flags().BoolVar(&flagListRFJ, "rfj", false, "print JSON instead of YAML")
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list [path]",
	Short: "Show the merged configuration",
	Long: `Prints the configuration that results from merging every layer, or the
value at a dotted path within it. Secure values are masked. With
--locations each layer is shown on its own.`,
	Example: `  strata list
  strata list profiles --root
  strata list defaults --locations --rfj`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	store, err := loadStore()
	if err != nil {
		return err
	}

	var path string
	if len(args) == 1 {
		path = args[0]
	}

	out := cmd.OutOrStdout()

	if flagListLocations {
		return listLocations(out, store, path)
	}

	doc := store.Document()
	v, ok := selectPath(maskSecure(doc.Root(), doc.Secure()), path)
	if !ok {
		return fmt.Errorf("property %s not found", path)
	}

	log.Debug().Str("path", path).Str("kind", v.Kind().String()).Msg("listing configuration")
	return render(out, v)
}

func listLocations(out io.Writer, store *config.Store, path string) error {
	layers := store.Layers()

	if flagListRFJ {
		byPath := jsontree.NewObject()
		for _, l := range layers {
			if !l.Exists {
				continue
			}
			if v, ok := selectPath(maskSecure(l.Properties, l.SecurePaths()), path); ok {
				byPath.Set(l.Path, v)
			}
		}
		return render(out, jsontree.FromObject(byPath))
	}

	table := uitable.New()
	table.MaxColWidth = 80
	table.Wrap = true
	table.AddRow("LAYER", "PATH", "EXISTS")
	for _, l := range layers {
		table.AddRow(l.Name(), l.Path, l.Exists)
	}
	fmt.Fprintln(out, table)

	for _, l := range layers {
		if !l.Exists {
			continue
		}
		v, ok := selectPath(maskSecure(l.Properties, l.SecurePaths()), path)
		if !ok {
			continue
		}
		fmt.Fprintf(out, "\n# %s\n", l.Path)
		if err := render(out, v); err != nil {
			return err
		}
	}
	return nil
}

// selectPath returns the value at path, reduced to its keys with --root.
func selectPath(root *jsontree.Object, path string) (jsontree.Value, bool) {
	v, ok := jsontree.GetPath(root, path)
	if !ok || !flagListRoot {
		return v, ok
	}
	obj, isObj := v.AsObject()
	if !isObj {
		return v, true
	}
	return jsontree.Strings(obj.Keys()), true
}

// maskSecure returns a copy of root with every declared secure path whose
// parent exists replaced by a placeholder.
func maskSecure(root *jsontree.Object, securePaths []string) *jsontree.Object {
	masked := root.Clone()
	for _, p := range securePaths {
		if i := strings.LastIndex(p, "."); i > 0 {
			if v, ok := jsontree.GetPath(masked, p[:i]); !ok || v.Kind() != jsontree.KindObject {
				continue
			}
		}
		jsontree.SetPath(masked, p, jsontree.String(maskedValue))
	}
	return masked
}

func render(out io.Writer, v jsontree.Value) error {
	if flagListRFJ {
		data, err := jsontree.Encode(v)
		if err != nil {
			return fmt.Errorf("encoding output: %w", err)
		}
		_, err = out.Write(data)
		return err
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(yamlNode(v)); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return enc.Close()
}

// yamlNode converts v into a YAML node tree, keeping object key order.
func yamlNode(v jsontree.Value) *yaml.Node {
	switch v.Kind() {
	case jsontree.KindObject:
		obj, _ := v.AsObject()
		n := &yaml.Node{Kind: yaml.MappingNode}
		obj.Range(func(key string, child jsontree.Value) bool {
			n.Content = append(n.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
				yamlNode(child))
			return true
		})
		return n
	case jsontree.KindArray:
		items, _ := v.AsArray()
		n := &yaml.Node{Kind: yaml.SequenceNode}
		for _, item := range items {
			n.Content = append(n.Content, yamlNode(item))
		}
		return n
	case jsontree.KindString:
		s, _ := v.AsString()
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
	case jsontree.KindNumber:
		num, _ := v.AsNumber()
		tag := "!!int"
		if strings.ContainsAny(string(num), ".eE") {
			tag = "!!float"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: string(num)}
	case jsontree.KindBool:
		b, _ := v.AsBool()
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: fmt.Sprint(b)}
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
