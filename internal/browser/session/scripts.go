package session

import (
	"fmt"

	json "github.com/json-iterator/go"
)

const snapshotJS = `document.evaluate(%s, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null)`

// countScript counts nodes matching xpath. Invalid expressions throw, which
// chromedp reports as an evaluation error.
func countScript(xpath string) string {
	return fmt.Sprintf(snapshotJS+`.snapshotLength`, jsString(xpath))
}

// textsScript returns the rendered text of every node matching xpath, in
// document order. Nodes without layout fall back to textContent.
func textsScript(xpath string) string {
	return fmt.Sprintf(`(() => {
	const r = `+snapshotJS+`;
	const out = [];
	for (let i = 0; i < r.snapshotLength; i++) {
		const n = r.snapshotItem(i);
		out.push(typeof n.innerText === "string" ? n.innerText : (n.textContent || ""));
	}
	return out;
})()`, jsString(xpath))
}

// jsString renders s as a JavaScript string literal.
func jsString(s string) string {
	out, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(out)
}
