package facts

import "strings"

// Command line switches understood by ParseArgs.
const (
	ArgConfigurationName    = "--configuration-name="
	ArgConfigurationUIName  = "--configuration-ui-name="
	ArgConfigurationDBName  = "--configuration-db-name="
	ArgConfigurationVariant = "--configuration-variant="
	ArgProperty             = "--property="
	ArgConfigurationFolder  = "--configuration-folder="
)

// ParseArgs applies the configuration switches found in args to p and returns
// the arguments it did not consume, in their original order.
func ParseArgs(p *Params, args []string) ([]string, error) {
	var unprocessed []string
	for _, arg := range args {
		var err error
		switch {
		case strings.HasPrefix(arg, ArgConfigurationName):
			err = p.SetConfigurationName(strings.TrimPrefix(arg, ArgConfigurationName))
		case strings.HasPrefix(arg, ArgConfigurationUIName):
			err = p.AddUINames(strings.TrimPrefix(arg, ArgConfigurationUIName))
		case strings.HasPrefix(arg, ArgConfigurationDBName):
			err = p.AddDBNames(strings.TrimPrefix(arg, ArgConfigurationDBName))
		case strings.HasPrefix(arg, ArgConfigurationVariant):
			err = p.SetExplicitVariants(strings.TrimPrefix(arg, ArgConfigurationVariant))
		case strings.HasPrefix(arg, ArgProperty):
			err = p.AddPropertyOverride(strings.TrimPrefix(arg, ArgProperty))
		case strings.HasPrefix(arg, ArgConfigurationFolder):
			err = p.AddConfigFolder(strings.TrimPrefix(arg, ArgConfigurationFolder))
		default:
			unprocessed = append(unprocessed, arg)
		}
		if err != nil {
			return unprocessed, err
		}
	}
	return unprocessed, nil
}
