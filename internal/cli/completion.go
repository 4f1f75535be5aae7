package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/samber/lo"
)

// CompletionCmd generates shell completions
type CompletionCmd struct {
	Shell string `arg:"" enum:"bash,zsh,fish" help:"Shell type (bash, zsh, fish)"`
}

// Shell snippets listing connected devices and third-party packages
const (
	serialsCmd  = `adb devices 2>/dev/null | awk 'NR>1 && $2=="device" {print $1}'`
	packagesCmd = `adb shell pm list packages -3 2>/dev/null | sed 's/^package://' | tr -d '\r'`
)

// completionFlag is one flag as the shells see it
type completionFlag struct {
	long  string
	short rune
	enum  []string
}

// completionTree is the command model flattened by command path
// ("" for the root, "config show" for a nested command)
type completionTree struct {
	paths    []string
	children map[string][]string
	flags    map[string][]completionFlag
}

// Run executes the completion command. Commands, flags and enum values are
// read from the parsed kong model.
func (c *CompletionCmd) Run(globals *Globals, ctx *kong.Context) error {
	var root *kong.Node
	if ctx != nil && ctx.Model != nil {
		root = ctx.Model.Node
	}
	tree := newCompletionTree(root)

	var sb strings.Builder
	switch c.Shell {
	case "bash":
		writeBashCompletion(&sb, tree)
	case "zsh":
		sb.WriteString("#compdef lcw\n# lcw zsh completion, add to ~/.zshrc:\n#   eval \"$(lcw completion zsh)\"\n\n")
		sb.WriteString("autoload -U +X bashcompinit && bashcompinit\n\n")
		writeBashCompletion(&sb, tree)
	case "fish":
		writeFishCompletion(&sb, tree)
	default:
		return fmt.Errorf("unsupported shell: %s", c.Shell)
	}
	_, err := io.WriteString(globals.Stdout, sb.String())
	return err
}

func newCompletionTree(root *kong.Node) completionTree {
	tree := completionTree{
		children: map[string][]string{},
		flags:    map[string][]completionFlag{},
	}
	if root == nil {
		tree.paths = []string{""}
		return tree
	}

	var walk func(n *kong.Node, path string)
	walk = func(n *kong.Node, path string) {
		tree.paths = append(tree.paths, path)
		for _, group := range n.AllFlags(true) {
			for _, f := range group {
				if f.Hidden {
					continue
				}
				tree.flags[path] = append(tree.flags[path], completionFlag{
					long:  f.Name,
					short: f.Short,
					enum:  splitEnum(f.Enum),
				})
			}
		}
		sort.Slice(tree.flags[path], func(i, j int) bool {
			return tree.flags[path][i].long < tree.flags[path][j].long
		})
		for _, child := range n.Children {
			if child.Type != kong.CommandNode || child.Hidden {
				continue
			}
			tree.children[path] = append(tree.children[path], child.Name)
			walk(child, strings.TrimSpace(path+" "+child.Name))
		}
		sort.Strings(tree.children[path])
	}
	walk(root, "")
	sort.Strings(tree.paths)
	return tree
}

func splitEnum(raw string) []string {
	return lo.Compact(lo.Map(strings.Split(raw, ","), func(v string, _ int) string {
		return strings.TrimSpace(v)
	}))
}

// words lists what may follow the command path: subcommands, then flags
func (t completionTree) words(path string) []string {
	out := append([]string(nil), t.children[path]...)
	for _, f := range t.flags[path] {
		out = append(out, "--"+f.long)
	}
	return out
}

// enums maps every flag spelling that takes enumerated values to them
func (t completionTree) enums() map[string][]string {
	out := map[string][]string{}
	for _, flags := range t.flags {
		for _, f := range flags {
			if len(f.enum) == 0 {
				continue
			}
			out["--"+f.long] = f.enum
			if f.short != 0 {
				out["-"+string(f.short)] = f.enum
			}
		}
	}
	return out
}

func writeBashCompletion(sb *strings.Builder, t completionTree) {
	sb.WriteString(`# lcw bash completion, add to ~/.bashrc:
#   eval "$(lcw completion bash)"

_lcw_serials() {
    ` + serialsCmd + `
}

_lcw_packages() {
    ` + packagesCmd + `
}

_lcw() {
    local cur prev path next w
    cur="${COMP_WORDS[COMP_CWORD]}"
    prev="${COMP_WORDS[COMP_CWORD-1]}"
    path=""
    for w in "${COMP_WORDS[@]:1:COMP_CWORD-1}"; do
        [[ "${w}" == -* ]] && continue
        next="${path:+${path} }${w}"
        case "${next}" in
`)
	for _, p := range t.paths {
		if p != "" {
			fmt.Fprintf(sb, "            %q) path=\"${next}\" ;;\n", p)
		}
	}
	sb.WriteString(`        esac
    done

    case "${prev}" in
        -s|--serial)
            COMPREPLY=($(compgen -W "$(_lcw_serials)" -- "${cur}"))
            return
            ;;
        -p|--package)
            COMPREPLY=($(compgen -W "$(_lcw_packages)" -- "${cur}"))
            return
            ;;
`)
	enums := t.enums()
	flags := lo.Keys(enums)
	sort.Strings(flags)
	for _, flag := range flags {
		fmt.Fprintf(sb, "        %s)\n            COMPREPLY=($(compgen -W \"%s\" -- \"${cur}\"))\n            return\n            ;;\n",
			flag, strings.Join(enums[flag], " "))
	}
	sb.WriteString(`    esac

    local words=""
    case "${path}" in
`)
	for _, p := range t.paths {
		fmt.Fprintf(sb, "        %q) words=%q ;;\n", p, strings.Join(t.words(p), " "))
	}
	sb.WriteString(`    esac
    COMPREPLY=($(compgen -W "${words}" -- "${cur}"))
}

complete -F _lcw lcw
`)
}

func writeFishCompletion(sb *strings.Builder, t completionTree) {
	sb.WriteString("# lcw fish completion, save as ~/.config/fish/completions/lcw.fish\n\n")
	sb.WriteString("complete -c lcw -f\n")

	for _, p := range t.paths {
		cond := fishCondition(p)
		if subs := t.children[p]; len(subs) > 0 {
			fmt.Fprintf(sb, "complete -c lcw -n %q -a %q\n", cond, strings.Join(subs, " "))
		}
		for _, f := range t.flags[p] {
			line := fmt.Sprintf("complete -c lcw -n %q -l %s", cond, f.long)
			if f.short != 0 {
				line += " -s " + string(f.short)
			}
			switch {
			case len(f.enum) > 0:
				line += fmt.Sprintf(" -xa %q", strings.Join(f.enum, " "))
			case f.long == "serial":
				line += fmt.Sprintf(" -xa %q", "("+serialsCmd+")")
			case f.long == "package":
				line += fmt.Sprintf(" -xa %q", "("+packagesCmd+")")
			}
			sb.WriteString(line + "\n")
		}
	}
}

// fishCondition matches a command line whose subcommands spell path
func fishCondition(path string) string {
	if path == "" {
		return "__fish_use_subcommand"
	}
	parts := strings.Fields(path)
	return "__fish_seen_subcommand_from " + parts[len(parts)-1]
}
