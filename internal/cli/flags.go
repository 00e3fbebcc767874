package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	switchFlagTypeName       = "bool"
	switchFlagTrueLiteral    = "true"
	switchFlagAcceptedValues = "true, false, yes, no, on, off, 1, 0"
	switchFlagInvalidFormat  = "invalid boolean value %q for --%s; accepted values: %s"
)

var switchFlagLiterals = map[string]bool{
	"true":  true,
	"t":     true,
	"1":     true,
	"yes":   true,
	"y":     true,
	"on":    true,
	"false": false,
	"f":     false,
	"0":     false,
	"no":    false,
	"n":     false,
	"off":   false,
}

// switchFlag is a boolean flag that also accepts yes/no style literals, either
// attached ("--copy=no") or as the following argument ("--copy no").
type switchFlag struct {
	target *bool
	name   string
}

func (flag *switchFlag) Set(input string) error {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		normalized = switchFlagTrueLiteral
	}
	parsed, known := switchFlagLiterals[normalized]
	if !known {
		return fmt.Errorf(switchFlagInvalidFormat, input, flag.name, switchFlagAcceptedValues)
	}
	*flag.target = parsed
	return nil
}

func (flag *switchFlag) String() string {
	if flag == nil || flag.target == nil {
		return "false"
	}
	return strconv.FormatBool(*flag.target)
}

func (flag *switchFlag) Type() string {
	return switchFlagTypeName
}

// registerSwitchFlag adds a switch flag whose value starts at defaultValue.
func registerSwitchFlag(flagSet *pflag.FlagSet, target *bool, name string, defaultValue bool, usage string) {
	*target = defaultValue
	flagSet.Var(&switchFlag{target: target, name: name}, name, usage)
	if lookup := flagSet.Lookup(name); lookup != nil {
		lookup.DefValue = strconv.FormatBool(defaultValue)
		lookup.NoOptDefVal = switchFlagTrueLiteral
	}
}

// switchFlagChanged reports whether the user set the flag on the command line.
func switchFlagChanged(command *cobra.Command, name string) bool {
	flag := command.Flags().Lookup(name)
	return flag != nil && flag.Changed
}

// attachSwitchFlagValues rewrites "--name literal" into "--name=literal" for every
// switch flag of command and its subcommands, so the literal is not taken as a
// positional argument.
func attachSwitchFlagValues(command *cobra.Command, arguments []string) []string {
	switchNames := map[string]struct{}{}
	collectSwitchFlagNames(command, switchNames)
	if len(switchNames) == 0 {
		return arguments
	}
	rewritten := make([]string, 0, len(arguments))
	for index := 0; index < len(arguments); index++ {
		argument := arguments[index]
		if argument == "--" {
			rewritten = append(rewritten, arguments[index:]...)
			break
		}
		if strings.HasPrefix(argument, "--") && !strings.Contains(argument, "=") && index+1 < len(arguments) {
			if _, isSwitch := switchNames[strings.TrimPrefix(argument, "--")]; isSwitch {
				literal := strings.ToLower(strings.TrimSpace(arguments[index+1]))
				if _, known := switchFlagLiterals[literal]; known {
					rewritten = append(rewritten, argument+"="+arguments[index+1])
					index++
					continue
				}
			}
		}
		rewritten = append(rewritten, argument)
	}
	return rewritten
}

func collectSwitchFlagNames(command *cobra.Command, target map[string]struct{}) {
	visit := func(flag *pflag.Flag) {
		if flag.Value != nil && flag.Value.Type() == switchFlagTypeName {
			target[flag.Name] = struct{}{}
		}
	}
	command.PersistentFlags().VisitAll(visit)
	command.Flags().VisitAll(visit)
	for _, child := range command.Commands() {
		collectSwitchFlagNames(child, target)
	}
}
