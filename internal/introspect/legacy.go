package introspect

import "encoding/xml"

// docStringAnnotation builds the annotation name a legacy <description
// language="lang"> element maps onto (spec.md §4.3 "Introspection
// XML": "<description> elements with language attributes map to
// org.alljoyn.Bus.DocString.<lang> annotations").
func docStringAnnotation(lang string) string {
	if lang == "" {
		return "org.alljoyn.Bus.DocString"
	}
	return "org.alljoyn.Bus.DocString." + lang
}

// MergeLegacyDescriptions merges per-language introspection XML (the
// shape returned by a pre-16.04 peer's IntrospectWithDescriptions) onto
// an already-parsed primary document, translating each language's
// <description> text into an org.alljoyn.Bus.DocString.<lang>
// annotation on the matching method/signal/property (spec.md
// §4.3, XmlHelper.cc's AddProxyObjects legacyDescriptions parameter).
// Interface-level <description> text is not carried into the result:
// ifc.Description holds no interface annotations.
func MergeLegacyDescriptions(primary []byte, legacyByLanguage map[string][]byte) (*ParseResult, error) {
	var node xmlNode
	if err := xml.Unmarshal(primary, &node); err != nil {
		return nil, err
	}

	for lang, doc := range legacyByLanguage {
		var legacyNode xmlNode
		if err := xml.Unmarshal(doc, &legacyNode); err != nil {
			return nil, err
		}
		mergeNodeDescriptions(&node, &legacyNode, lang)
	}

	return parseNode(&node)
}

func mergeNodeDescriptions(dst, src *xmlNode, lang string) {
	for i := range dst.Interfaces {
		di := &dst.Interfaces[i]
		si := findInterface(src.Interfaces, di.Name)
		if si == nil {
			continue
		}
		if text, ok := descriptionText(si.Descriptions); ok {
			di.Annotations = append(di.Annotations, xmlAnnotation{Name: docStringAnnotation(lang), Value: text})
		}
		for j := range di.Methods {
			if sm := findMethod(si.Methods, di.Methods[j].Name); sm != nil {
				if text, ok := descriptionText(sm.Descriptions); ok {
					di.Methods[j].Annotations = append(di.Methods[j].Annotations, xmlAnnotation{Name: docStringAnnotation(lang), Value: text})
				}
			}
		}
		for j := range di.Signals {
			if ss := findSignal(si.Signals, di.Signals[j].Name); ss != nil {
				if text, ok := descriptionText(ss.Descriptions); ok {
					di.Signals[j].Annotations = append(di.Signals[j].Annotations, xmlAnnotation{Name: docStringAnnotation(lang), Value: text})
				}
			}
		}
		for j := range di.Properties {
			if sp := findProperty(si.Properties, di.Properties[j].Name); sp != nil {
				if text, ok := descriptionText(sp.Descriptions); ok {
					di.Properties[j].Annotations = append(di.Properties[j].Annotations, xmlAnnotation{Name: docStringAnnotation(lang), Value: text})
				}
			}
		}
	}
}

func descriptionText(descs []xmlDescription) (string, bool) {
	if len(descs) == 0 {
		return "", false
	}
	return descs[0].Text, true
}

func findInterface(ifaces []xmlInterface, name string) *xmlInterface {
	for i := range ifaces {
		if ifaces[i].Name == name {
			return &ifaces[i]
		}
	}
	return nil
}

func findMethod(methods []xmlMethod, name string) *xmlMethod {
	for i := range methods {
		if methods[i].Name == name {
			return &methods[i]
		}
	}
	return nil
}

func findSignal(signals []xmlSignal, name string) *xmlSignal {
	for i := range signals {
		if signals[i].Name == name {
			return &signals[i]
		}
	}
	return nil
}

func findProperty(props []xmlProperty, name string) *xmlProperty {
	for i := range props {
		if props[i].Name == name {
			return &props[i]
		}
	}
	return nil
}
