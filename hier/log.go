package hier

import "github.com/sirupsen/logrus"

// logger is the package-wide fallback logger. A Session can override it
// with its own field logger via Options.Logger.
var logger logrus.FieldLogger = logrus.StandardLogger()

func entryFields(e Entry) logrus.Fields {
	return logrus.Fields{
		"name":   e.Name().String(),
		"status": e.Status().String(),
	}
}
