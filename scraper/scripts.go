package scraper

// In-page scripts. Each is a function expression evaluated by browser.Page.Eval.

// countRowsJS counts table body rows with at least minCells <td> cells.
const countRowsJS = `(minCells) => {
	let valid = 0;
	for (const tr of document.querySelectorAll('table tbody tr')) {
		if (tr.querySelectorAll('td').length >= minCells) valid++;
	}
	return valid;
}`

// tableCountJS counts <table> elements in the document.
const tableCountJS = `() => document.querySelectorAll('table').length`

// scrollBottomJS scrolls the document to its bottom edge.
const scrollBottomJS = `() => window.scrollTo(0, document.body.scrollHeight)`

// clickByTextJS tries the candidate labels in order and clicks the first
// button whose trimmed text equals the label or contains it as whole words
// (case-insensitive), so "Agree" never matches "Disagree". It returns the
// matched label or "".
const clickByTextJS = `(labels) => {
	const norm = s => (s || '').replace(/\s+/g, ' ').trim().toLowerCase();
	const escape = s => s.replace(/[.*+?^${}()|[\]\\]/g, '\\$&');
	const buttons = Array.from(document.querySelectorAll('button, [role="button"]'))
		.map(btn => ({ btn, text: norm(btn.innerText || btn.textContent) }))
		.filter(b => b.text);
	for (const label of labels) {
		const want = norm(label);
		const word = new RegExp('(^|[^a-z0-9])' + escape(want) + '($|[^a-z0-9])');
		for (const b of buttons) {
			if (b.text === want || word.test(b.text)) {
				b.btn.click();
				return label;
			}
		}
	}
	return '';
}`

// removeOverlaysJS strips a consent wall that no button could dismiss. It
// does nothing unless a consent container is present. When one is, it removes
// fixed or sticky layers with a high z-index and fixed or sticky
// consent/overlay containers, then restores scrolling. Absolutely positioned
// elements such as menus are left alone. It returns the number of removed
// elements.
const removeOverlaysJS = `() => {
	const consent = '[class*="consent"], [id*="consent"], [class*="cookie"], [id*="cookie"], [class*="gdpr"], [id*="gdpr"]';
	if (!document.querySelector(consent)) return 0;
	let removed = 0;
	for (const el of document.querySelectorAll('*')) {
		const style = window.getComputedStyle(el);
		if (style.position === 'fixed' || style.position === 'sticky') {
			const z = parseInt(style.zIndex, 10);
			if (z >= 900) { el.remove(); removed++; }
		}
	}
	document.querySelectorAll(consent + ', [class*="overlay"], [id*="overlay"]').forEach(el => {
		if (!el.isConnected) return;
		const pos = window.getComputedStyle(el).position;
		if (pos === 'fixed' || pos === 'sticky') { el.remove(); removed++; }
	});
	document.documentElement.style.overflow = '';
	if (document.body) document.body.style.overflow = '';
	return removed;
}`
